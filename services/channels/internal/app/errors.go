package app

import "errors"

var (
	// ErrUserNotFound and ErrIncorrectPassword are deliberately distinct; the client shows
	// different prompts for them.
	ErrUserNotFound      = errors.New("user not found")
	ErrIncorrectPassword = errors.New("incorrect password")

	ErrUnauthorized     = errors.New("login required")
	ErrForbidden        = errors.New("channel belongs to another user")
	ErrChannelNotFound  = errors.New("channel not found")
	ErrCardNotFound     = errors.New("card not found")
	ErrItemNotFound     = errors.New("serendipity entry not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAsyncUnavailable = errors.New("asynchronous cold start requires redis")
	ErrMediaUnavailable = errors.New("media storage not configured")
)
