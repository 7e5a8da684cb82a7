package elo

import (
	"github.com/okian/movie-elo/internal/domain/model"
)

// MergeResult is the outcome of folding a new batch into a population.
type MergeResult struct {
	// Existing is a copy of the existing population with corrections applied.
	Existing []model.Movie
	// Added holds the newly seeded movies, best rating first.
	Added []model.Movie
	// Adjusted lists the titles of existing movies whose Elo changed.
	Adjusted []string
	// Offset is the rounded drift of the batch mean from the target mean.
	Offset int
	// Skipped counts batch rows dropped by filtering.
	Skipped int
}

// Merge seeds the movies of batch that are not yet in existing and corrects
// the existing population for the drift of the batch mean.
//
// Rows whose title already exists, repeats an earlier row or is empty, and rows
// with a non-finite rating are dropped. An empty filtered batch is a no-op.
// The batch is always seeded in direct mode. Defaults: mean 1500, stddev 100,
// CorrectionFirstK. The existing slice is not modified.
func Merge(existing []model.Movie, batch []model.RawRating, opts ...Option) (MergeResult, error) {
	p, err := newParams(DefaultMergeStdDev, opts)
	if err != nil {
		return MergeResult{}, err
	}
	p.mode = ModeDirect

	res := MergeResult{Existing: make([]model.Movie, len(existing))}
	copy(res.Existing, existing)

	fresh := Filter(existing, batch)
	res.Skipped = len(batch) - len(fresh)
	if len(fresh) == 0 {
		return res, nil
	}

	added, err := seed(fresh, p)
	if err != nil {
		return MergeResult{}, err
	}
	res.Added = added

	var sum float64
	for _, m := range added {
		sum += float64(m.Elo)
	}
	res.Offset = round(sum/float64(len(added)) - p.mean)

	if res.Offset != 0 && len(res.Existing) > 0 && p.correction == CorrectionFirstK {
		k := min(len(res.Existing), len(added))
		perMovie := round(float64(res.Offset) / float64(k))
		if perMovie != 0 {
			for i := 0; i < k; i++ {
				res.Existing[i].Elo -= perMovie
				res.Adjusted = append(res.Adjusted, res.Existing[i].Title)
			}
		}
	}
	return res, nil
}

// Filter drops rows of batch that have an empty title, a non-finite rating or
// a title already in existing or earlier in batch. The first occurrence wins.
func Filter(existing []model.Movie, batch []model.RawRating) []model.RawRating {
	seen := make(map[string]struct{}, len(existing)+len(batch))
	for _, m := range existing {
		seen[m.Title] = struct{}{}
	}
	out := make([]model.RawRating, 0, len(batch))
	for _, r := range batch {
		if r.Title == "" || isNonFinite(r.Rating) {
			continue
		}
		if _, dup := seen[r.Title]; dup {
			continue
		}
		seen[r.Title] = struct{}{}
		out = append(out, r)
	}
	return out
}
