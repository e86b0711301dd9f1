package store

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord indicates a persisted record is missing a required field
// or carries an unknown type.
var ErrMalformedRecord = errors.New("malformed recording record")

// ErrNoRecordings indicates the recordings directory holds no recordings.
var ErrNoRecordings = errors.New("no recordings found")

// Error reports a failed persistence operation on a recording file.
type Error struct {
	Op   string // "read", "decode", "write", "list"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("recording %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
