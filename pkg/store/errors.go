package store

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUserExists    = errors.New("username already exists")
	ErrChannelExists = errors.New("channel id already exists")
	ErrPresetChannel = errors.New("preset channels cannot be deleted")
	// ErrStorageFull means the document could not be persisted even after media was dropped.
	ErrStorageFull = errors.New("storage full: document could not be saved")
)
