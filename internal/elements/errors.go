package elements

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField reports a row that lacks a required column value.
	ErrMissingField = errors.New("missing field")
	// ErrMalformedRow reports a non-numeric, out-of-range or duplicate row.
	ErrMalformedRow = errors.New("malformed row")
)

// RowError locates a load failure. Line is 1-based and counts the header.
type RowError struct {
	Line  int
	Body  string
	Field string
	Err   error
}

func (e *RowError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("line %d (%s): field %q: %v", e.Line, e.Body, e.Field, e.Err)
	}
	return fmt.Sprintf("line %d: field %q: %v", e.Line, e.Field, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

func missing(line int, body, field string) error {
	return &RowError{Line: line, Body: body, Field: field, Err: ErrMissingField}
}

func malformed(line int, body, field, format string, args ...any) error {
	return &RowError{
		Line:  line,
		Body:  body,
		Field: field,
		Err:   fmt.Errorf("%w: %s", ErrMalformedRow, fmt.Sprintf(format, args...)),
	}
}
