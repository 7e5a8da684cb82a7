package poster

import "errors"

var (
	// ErrNoPoster means the lookup succeeded but OMDb has no poster.
	ErrNoPoster = errors.New("poster: not available")
	// ErrUpstream wraps transport and non-2xx failures.
	ErrUpstream = errors.New("poster: upstream failure")
)
