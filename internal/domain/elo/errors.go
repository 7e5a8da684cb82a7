package elo

import "errors"

// Sentinel kinds for the rating engine. Callers match them with errors.Is.
var (
	ErrInvalidArgument        = errors.New("elo: invalid argument")
	ErrEmptyInput             = errors.New("elo: nothing to seed")
	ErrInsufficientItems      = errors.New("elo: at least two movies are required")
	ErrWindowExhausted        = errors.New("elo: every pair is in the recent window")
	ErrDegenerateDistribution = errors.New("elo: zero spread in seeded z-scores")
)
