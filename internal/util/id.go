package util

import "github.com/google/uuid"

// NewID returns a random UUID string. Card, channel and user identifiers all come from here,
// so they are unique across the whole document.
func NewID() string {
	return uuid.NewString()
}
