package elo

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/movie-elo/internal/domain/model"
)

// Seed assigns initial Elo scores to items from their external ratings.
//
// Items are ranked by rating (descending, ties keep input order) and rank i of
// n is mapped to the percentile 1-(i+0.5)/n of the target normal distribution.
// Defaults: mean 1500, stddev 350, direct mode.
func Seed(items []model.RawRating, opts ...Option) ([]model.Movie, error) {
	p, err := newParams(DefaultSeedStdDev, opts)
	if err != nil {
		return nil, err
	}
	return seed(items, p)
}

func seed(items []model.RawRating, p params) ([]model.Movie, error) {
	n := len(items)
	if n == 0 {
		return nil, ErrEmptyInput
	}

	ranked := make([]model.RawRating, n)
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rating > ranked[j].Rating
	})

	z := make([]float64, n)
	for i := range ranked {
		percentile := 1 - (float64(i)+0.5)/float64(n)
		v, err := InvNormalCDF(percentile)
		if err != nil {
			return nil, fmt.Errorf("seed rank %d: %w", i, err)
		}
		z[i] = v
	}

	if p.mode == ModeRenormalized {
		if err := standardize(z); err != nil {
			return nil, err
		}
	}

	out := make([]model.Movie, n)
	for i, r := range ranked {
		out[i] = model.Movie{
			Title:  r.Title,
			Rating: r.Rating,
			Elo:    round(p.mean + z[i]*p.stddev),
			URI:    r.URI,
		}
	}
	return out, nil
}

// standardize rescales z in place to zero mean and unit population stddev.
func standardize(z []float64) error {
	mean, std := moments(z)
	if std == 0 || isNonFinite(std) {
		return fmt.Errorf("%w: %d z-scores", ErrDegenerateDistribution, len(z))
	}
	for i := range z {
		z[i] = (z[i] - mean) / std
	}
	return nil
}

// moments returns the mean and population standard deviation of xs.
func moments(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// round rounds half up (toward +Inf), the rounding every stored score uses.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func isNonFinite(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0)
}
