package service

import "errors"

var (
	// ErrUnknownMatchup is returned when a vote names a matchup that was never
	// issued, was already voted on, or was discarded by Reset.
	ErrUnknownMatchup = errors.New("unknown matchup")
	// ErrInvalidWinner is returned when the winner is neither "a" nor "b".
	ErrInvalidWinner = errors.New("winner must be \"a\" or \"b\"")
	// ErrEmptyImport is returned when an import carries no usable rows.
	ErrEmptyImport = errors.New("no usable ratings in import")
)
