package bloomgo

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
)

var (
	// ErrInvalidParameter is returned when a construction or operation
	// argument is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrOutOfMemory is returned when a load would allocate a filter buffer
	// larger than the configured limit.
	ErrOutOfMemory = errors.New("filter buffer exceeds memory limit")

	// ErrIO is returned when reading or writing a serialized filter fails
	// at the transport or file level.
	ErrIO = errors.New("i/o failure")

	// ErrInvalidFormat is returned when serialized bytes are not a valid
	// filter of the expected variant and version.
	ErrInvalidFormat = errors.New("invalid filter format")

	// ErrIncompatibleFilters is returned when a set operation is attempted
	// on filters with different sizing parameters.
	ErrIncompatibleFilters = errors.New("incompatible filters")

	// ErrClosed is returned when an operation requires a filter that has
	// already been closed.
	ErrClosed = errors.New("filter is closed")

	// ErrReadOnly is returned when a mutation is attempted on a read-only
	// filter view.
	ErrReadOnly = errors.New("filter is read-only")
)

// ParameterError reports which construction argument was rejected and why.
//
// It unwraps to ErrInvalidParameter.
type ParameterError struct {
	Param  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// FormatError reports why serialized bytes were rejected during load.
//
// It unwraps to ErrInvalidFormat. The original underlying error (if any)
// can be accessed via errors.Unwrap on the cause chain.
type FormatError struct {
	Reason string
	cause  error
}

func (e *FormatError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid filter format: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("invalid filter format: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrInvalidFormat }

// CompatibilityError reports the first sizing field that differs between two
// filters handed to a set operation.
//
// It unwraps to ErrIncompatibleFilters.
type CompatibilityError struct {
	Field string
	A     any
	B     any
}

func (e *CompatibilityError) Error() string {
	return fmt.Sprintf("incompatible filters: %s differs (%v vs %v)", e.Field, e.A, e.B)
}

func (e *CompatibilityError) Unwrap() error { return ErrIncompatibleFilters }

// translateError normalizes low-level read/write failures into the package
// error taxonomy. Errors that already carry a sentinel pass through.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrOutOfMemory) ||
		errors.Is(err, ErrIO) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrIncompatibleFilters) ||
		errors.Is(err, ErrClosed) ||
		errors.Is(err, ErrReadOnly) {
		return err
	}

	// Truncated streams surface as EOF from io.ReadFull.
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	return fmt.Errorf("%w: %w", ErrIO, err)
}
