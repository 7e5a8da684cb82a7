package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/okian/movie-elo/internal/adapters/csvimport"
	"github.com/okian/movie-elo/internal/domain/model"
)

const moviesFilePermission = 0o600

// LoadMovies reads a movies JSON file: an array of {title, rating, elo, uri}.
func LoadMovies(path string) ([]model.Movie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadMoviesFile, path, err)
	}
	movies := make([]model.Movie, 0, len(records))
	for _, r := range records {
		movies = append(movies, r.Movie())
	}
	return movies, nil
}

// SaveMovies writes movies in order, pretty-printed with two-space indent.
// The file is replaced atomically.
func SaveMovies(path string, movies []model.Movie) error {
	records := make([]model.Record, 0, len(movies))
	for _, m := range movies {
		records = append(records, m.ToRecord())
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode movies: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, moviesFilePermission); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func readRatings(path string, yearInTitle bool) ([]model.RawRating, csvimport.Report, error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, csvimport.Report{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var opts []csvimport.Option
	if yearInTitle {
		opts = append(opts, csvimport.WithYearInTitle())
	}
	return csvimport.Parse(f, opts...)
}
