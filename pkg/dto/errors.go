package dto

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks a successful backend response whose body could not
// be turned into a record.
var ErrMalformedResponse = errors.New("malformed response")

// MalformedError describes which record and field failed to decode.
type MalformedError struct {
	Record string
	Field  string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: decode %s: %v", ErrMalformedResponse, e.Record, e.Err)
	}
	return fmt.Sprintf("%s: decode %s.%s: %v", ErrMalformedResponse, e.Record, e.Field, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Is reports ErrMalformedResponse so callers can match without errors.As.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformedResponse }

func malformed(record, field string, err error) error {
	return &MalformedError{Record: record, Field: field, Err: err}
}

var errMissing = errors.New("missing required field")
