package pkg

import "errors"

// Errors shared across the usbtree packages.
var (
	// ErrInvalidParameter indicates a nil or otherwise unusable argument.
	// It is the only fault reported synchronously to callers.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrClosed indicates the tree or source has been closed.
	ErrClosed = errors.New("closed")

	// ErrNoDevice indicates a device vanished while it was being read.
	ErrNoDevice = errors.New("device not present")

	// ErrNotSupported indicates an unsupported operation or platform.
	ErrNotSupported = errors.New("not supported")

	// ErrNoSource indicates the device enumeration root could not be read.
	ErrNoSource = errors.New("device source unavailable")
)
