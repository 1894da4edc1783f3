package repository

import "errors"

var (
	// ErrUnsupportedOutput indicates no encoder exists for the output location
	ErrUnsupportedOutput = errors.New("unsupported output format")

	// ErrInvalidLocation indicates an output location could not be derived
	ErrInvalidLocation = errors.New("invalid image location")
)
