// Package apperr defines the error taxonomy shared by the store, the
// service and the transports.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// DataFormatError reports a persisted file that cannot be loaded: missing,
// unreadable, missing required columns, or (in strict mode) a bad row.
type DataFormatError struct {
	Path   string
	Row    int    // 1-based data row, 0 when not row-specific
	Column string // offending column, empty when not column-specific
	Reason string
	Err    error
}

func (e *DataFormatError) Error() string {
	msg := "data format: " + e.Path
	if e.Row > 0 {
		msg += fmt.Sprintf(": row %d", e.Row)
	}
	if e.Column != "" {
		msg += ": column " + e.Column
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// ValidationError reports a single record that violates an invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IOError reports a failed write; the operation was not committed.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// AsValidation returns the ValidationError in err's chain, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// AsDataFormat returns the DataFormatError in err's chain, if any.
func AsDataFormat(err error) (*DataFormatError, bool) {
	var de *DataFormatError
	ok := errors.As(err, &de)
	return de, ok
}

// IsIO reports whether err carries an IOError.
func IsIO(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
