package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/movie-elo/internal/domain/elo"
	"github.com/okian/movie-elo/internal/domain/model"
	"github.com/okian/movie-elo/pkg/logger"
)

// RunSeed assigns initial Elo scores to every rated movie of cfg.In and
// writes them to the output file, replacing its contents.
func RunSeed(ctx context.Context, cfg Config) error {
	rows, rep, err := readRatings(cfg.In, cfg.YearInTitle)
	if err != nil {
		return err
	}
	fresh := elo.Filter(nil, rows)
	if len(fresh) == 0 {
		return fmt.Errorf("%w in %s", ErrNoRatings, cfg.In)
	}
	_, _ = fmt.Fprintf(cfg.Stdout, "Parsed %d rated movies.\n", len(fresh))

	movies, err := elo.Seed(fresh, elo.WithMean(cfg.Mean), elo.WithStdDev(cfg.StdDev))
	if err != nil {
		return err
	}
	out := cfg.output()
	if err := SaveMovies(out, movies); err != nil {
		return err
	}

	cfg.Logger.Info(ctx, "seeded movies",
		logger.String("in", cfg.In),
		logger.String("out", out),
		logger.Int("rows", rep.Rows),
		logger.Int("seeded", len(movies)),
		logger.Int("skipped", rep.Skipped+len(rows)-len(fresh)))
	_, _ = fmt.Fprintf(cfg.Stdout, "Initial Elo scores assigned and saved to %s.\n", out)
	return nil
}

// RunAdd seeds the movies of cfg.In that cfg.DB does not hold yet and appends
// them. The new batch is standardized on its own so its mean and stddev match
// the targets; a batch without spread falls back to direct seeding.
func RunAdd(ctx context.Context, cfg Config) error {
	existing, err := LoadMovies(cfg.DB)
	if err != nil {
		return err
	}
	rows, _, err := readRatings(cfg.In, cfg.YearInTitle)
	if err != nil {
		return err
	}

	fresh := elo.Filter(existing, rows)
	if len(fresh) == 0 {
		_, _ = fmt.Fprintln(cfg.Stdout, "No new movies to add.")
		return nil
	}

	added, err := seedRenormalized(ctx, cfg, fresh)
	if err != nil {
		return err
	}
	updated := make([]model.Movie, 0, len(existing)+len(added))
	updated = append(updated, existing...)
	updated = append(updated, added...)
	if err := SaveMovies(cfg.DB, updated); err != nil {
		return err
	}

	cfg.Logger.Info(ctx, "added movies",
		logger.String("db", cfg.DB),
		logger.Int("existing", len(existing)),
		logger.Int("added", len(added)))
	_, _ = fmt.Fprintf(cfg.Stdout, "Added %d new movie(s). Elo average preserved.\n", len(added))
	return nil
}

func seedRenormalized(ctx context.Context, cfg Config, batch []model.RawRating) ([]model.Movie, error) {
	opts := []elo.Option{elo.WithMean(cfg.Mean), elo.WithStdDev(cfg.StdDev)}
	added, err := elo.Seed(batch, append(opts, elo.WithMode(elo.ModeRenormalized))...)
	if errors.Is(err, elo.ErrDegenerateDistribution) {
		cfg.Logger.Warn(ctx, "degenerate batch, seeding directly", logger.Int("batch", len(batch)))
		return elo.Seed(batch, append(opts, elo.WithMode(elo.ModeDirect))...)
	}
	return added, err
}
