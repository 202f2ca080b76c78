package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for broad classification.
var (
	// ErrConfiguration reports an unknown model kind or invalid bounds.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataValidity reports missing, malformed or misaligned series.
	ErrDataValidity = errors.New("invalid data")

	// ErrFileFormat reports an unsupported input file.
	ErrFileFormat = errors.New("unsupported file format")

	// ErrNumerical reports a computation that could not produce a usable value.
	ErrNumerical = errors.New("numerical error")
)

var errEmpty = errors.New("series is empty")

func errMisaligned(a, b int) error {
	return fmt.Errorf("channel lengths differ (%d vs %d)", a, b)
}

// OpError wraps an underlying error with the operation that failed and one of
// the sentinel kinds above.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

// NewOpError builds an OpError. err may be nil.
func NewOpError(op string, kind, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Err: err}
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
