package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the location holds no object
	ErrNotFound = errors.New("object not found")

	// ErrReadOnly indicates the backend cannot store objects
	ErrReadOnly = errors.New("storage backend is read-only")

	// ErrTooLarge indicates the object exceeds the configured size limit
	ErrTooLarge = errors.New("object exceeds size limit")
)

// Backend reads and writes raw image bytes by location
type Backend interface {
	// Read returns the bytes stored at location
	Read(ctx context.Context, location string) ([]byte, error)

	// Write stores data at location, replacing any existing object
	Write(ctx context.Context, location string, data []byte) error

	// Name identifies the backend in logs
	Name() string
}
