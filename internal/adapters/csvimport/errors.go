package csvimport

import "errors"

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("csvimport: missing column")
	// ErrMalformed wraps CSV syntax errors.
	ErrMalformed = errors.New("csvimport: malformed csv")
)
