// Package errs holds the error kinds shared by the binning engine.
// Callers wrap them with fmt.Errorf("%w: ...") and match with errors.Is.
package errs

import "errors"

var (
	// ErrInvalidArgument is returned for bad worker counts, ranks or missing inputs.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIO is returned when a file cannot be opened, read or written.
	ErrIO = errors.New("io error")
	// ErrTruncatedStream is returned when fewer bytes are available than the
	// declared event count implies.
	ErrTruncatedStream = errors.New("truncated stream")
	// ErrCapacityExceeded marks a file catalog that was cut to its maximum size.
	// It is a warning: the truncated catalog is still usable.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)
