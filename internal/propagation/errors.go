package propagation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDateFormat reports a date that is not a real YYYY-MM-DD day.
	ErrInvalidDateFormat = errors.New("invalid date format, expected YYYY-MM-DD")
	// ErrUnsupportedMode reports an unknown mode or an invalid combination.
	ErrUnsupportedMode = errors.New("unsupported mode")
	// ErrNoTable reports a computation without the table its solver needs.
	ErrNoTable = errors.New("no element table loaded")
	// ErrNonFinitePosition aborts a batch whose arithmetic left the reals.
	ErrNonFinitePosition = errors.New("non-finite position")
	// ErrMissingReference reports a velocity row without initial coordinates.
	ErrMissingReference = errors.New("missing reference coordinates")
	// ErrTooManyFrames rejects a timeline beyond the configured bound.
	ErrTooManyFrames = errors.New("timeline too long")
	// ErrInvalidRange rejects a negative span or a non-positive step.
	ErrInvalidRange = errors.New("invalid timeline range")
	// ErrUnknownBody reports a body name missing from the loaded tables.
	ErrUnknownBody = errors.New("unknown body")
)

// DateError carries the rejected input. It unwraps to ErrInvalidDateFormat.
type DateError struct {
	Input string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidDateFormat, e.Input)
}

func (e *DateError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidDateFormat}
	}
	return []error{ErrInvalidDateFormat, e.Err}
}

// BodyError names the body a batch failed on.
type BodyError struct {
	Body string
	Err  error
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Body, e.Err)
}

func (e *BodyError) Unwrap() error {
	return e.Err
}
