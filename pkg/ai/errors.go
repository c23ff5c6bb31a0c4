package ai

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured = errors.New("generation surface not configured")
	ErrEmptyResponse = errors.New("empty response from generation api")
	// ErrNoImageData means the response carried none of the recognised image shapes.
	ErrNoImageData = errors.New("no image data in response")
)

// StatusError is a non-success HTTP reply from an upstream model API.
type StatusError struct {
	Surface    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s api error: %d %s", e.Surface, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s api error: %d", e.Surface, e.StatusCode)
}
