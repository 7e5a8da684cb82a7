package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("movie not found")
	ErrInvalidLimit = errors.New("invalid rankings limit")
	ErrInvalidOwner = errors.New("invalid owner")
	ErrClosed       = errors.New("store closed")
)
