package cli

import "errors"

var (
	// ErrUnknownCommand is returned for a subcommand Run does not know.
	ErrUnknownCommand = errors.New("cli: unknown command")
	// ErrBadMoviesFile is returned when a movies file is not a JSON array of records.
	ErrBadMoviesFile = errors.New("cli: malformed movies file")
	// ErrNoRatings is returned when seed finds no usable rating.
	ErrNoRatings = errors.New("cli: no rated movies")
)
