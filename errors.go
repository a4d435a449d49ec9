package seekio

import (
	"errors"
	"fmt"
)

// Common errors returned by seekio backends and utilities.
var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("seekio: not found")

	// ErrPermissionDenied is returned when access to a resource is denied.
	ErrPermissionDenied = errors.New("seekio: permission denied")

	// ErrNotOpen is returned when an operation needs an open stream.
	ErrNotOpen = errors.New("seekio: stream not open")

	// ErrReleased is returned when operating on a released stream,
	// including the source of a completed Transfer.
	ErrReleased = errors.New("seekio: stream released")

	// ErrNotSupported is returned when an operation is not supported by the backend.
	ErrNotSupported = errors.New("seekio: operation not supported")

	// ErrInvalidSeek is returned when a seek would move before the start.
	ErrInvalidSeek = errors.New("seekio: invalid seek")

	// ErrInvalidMode is returned for an unrecognised file open mode.
	ErrInvalidMode = errors.New("seekio: invalid open mode")

	// ErrShortRead is returned by ReadOrError when fewer bytes were available.
	ErrShortRead = errors.New("seekio: short read")

	// ErrPlaceholderData is returned when a write-back would have to treat
	// placeholder bytes as real content.
	ErrPlaceholderData = errors.New("seekio: placeholder data in write-back")

	// ErrInvalidLocator is returned when a locator cannot be parsed.
	ErrInvalidLocator = errors.New("seekio: invalid locator")

	// ErrUnknownProtocol is returned by Open when no backend serves the protocol.
	ErrUnknownProtocol = errors.New("seekio: unknown protocol")
)

// Error is the structured error returned by hard failures.
// It records the operation, the resource identifier and the cause.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("seekio: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("seekio: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a *Error. It returns nil if err is nil.
func NewError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) && se.Op == op && se.Path == path {
		return err
	}
	return &Error{Op: op, Path: path, Err: err}
}

// IsNotFound returns true if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermissionDenied returns true if the error indicates permission was denied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsNotSupported returns true if the error indicates an unsupported operation.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// IsReleased returns true if the error indicates use of a released stream.
func IsReleased(err error) bool {
	return errors.Is(err, ErrReleased)
}
