package cli

import (
	"io"
	"os"

	"github.com/okian/movie-elo/internal/domain/elo"
	"github.com/okian/movie-elo/pkg/logger"
)

// Default file names of the file-based workflow.
const (
	DefaultRatingsFile = "ratings.csv"
	DefaultMoviesFile  = "movies-with-elo.json"
)

// Config holds the settings shared by every command.
type Config struct {
	In          string  // ratings CSV to read
	DB          string  // movies JSON to read and write
	Out         string  // movies JSON written by seed; defaults to DB
	Mean        float64 // target Elo mean
	StdDev      float64 // target Elo stddev for seeding
	K           int     // Elo K-factor used by match
	YearInTitle bool    // build titles as "Name Year"
	Seed        int64   // random seed for match; 0 picks one

	Logger logger.Logger
	Stdin  io.Reader
	Stdout io.Writer
}

// DefaultConfig returns the defaults of the original scripts.
func DefaultConfig() Config {
	return Config{
		In:     DefaultRatingsFile,
		DB:     DefaultMoviesFile,
		Mean:   elo.DefaultMean,
		StdDev: elo.DefaultSeedStdDev,
		K:      elo.DefaultKFactor,
		Logger: logger.Nop(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
}

func (c Config) output() string {
	if c.Out != "" {
		return c.Out
	}
	return c.DB
}
