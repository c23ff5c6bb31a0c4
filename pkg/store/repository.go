package store

import (
	"context"
	"errors"
)

// Fixed keys under which the three persisted values live.
const (
	DocumentKey  = "ai-book-channels-data"
	PasswordsKey = "ai-book-channels-passwords"
	ChatKey      = "ai-book-chat-messages"
)

// ErrQuotaExceeded is returned by a Repository when a value does not fit in the backend.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Repository persists opaque values by key. Put replaces the whole value atomically:
// readers see either the old value or the new one.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// checkQuota reports ErrQuotaExceeded when size is over a positive limit.
func checkQuota(limit int64, size int) error {
	if limit > 0 && int64(size) > limit {
		return ErrQuotaExceeded
	}
	return nil
}
