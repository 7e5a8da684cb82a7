// Package repository persists each owner's movie population.
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/movie-elo/internal/domain/model"
	"github.com/okian/movie-elo/internal/domain/types"
	"github.com/okian/movie-elo/pkg/metrics"
)

// maxOwnerLen bounds owner identifiers.
const maxOwnerLen = 128

// Store provides per-owner read/write access to rated movies. Movies are
// identified by (owner, title) and ranked by Elo desc, then title asc.
type Store interface {
	// Population returns every movie of owner in rank order.
	Population(ctx context.Context, owner string) ([]model.Movie, error)
	// Get returns one movie or ErrNotFound.
	Get(ctx context.Context, owner, title string) (model.Movie, error)
	// Upsert inserts or replaces movies by title, atomically.
	Upsert(ctx context.Context, owner string, movies ...model.Movie) error
	// DeleteAll removes the owner's population and returns how many movies it held.
	DeleteAll(ctx context.Context, owner string) (int, error)
	// TopN returns the first n ranked entries; n < 1 is ErrInvalidLimit.
	TopN(ctx context.Context, owner string, n int) ([]types.Entry, error)
	// Rank returns the 1-based rank of title or ErrNotFound.
	Rank(ctx context.Context, owner, title string) (types.Entry, error)
	// Count returns the size of the owner's population.
	Count(ctx context.Context, owner string) (int, error)
	Close() error
}

// ValidateOwner rejects empty, oversized or ':'-bearing owner ids.
func ValidateOwner(owner string) error {
	if owner == "" || len(owner) > maxOwnerLen || strings.ContainsRune(owner, ':') {
		return fmt.Errorf("%w: %q", ErrInvalidOwner, owner)
	}
	return nil
}

// before reports whether a ranks ahead of b.
func before(a, b model.Movie) bool {
	if a.Elo != b.Elo {
		return a.Elo > b.Elo
	}
	return a.Title < b.Title
}

func sortRanked(ms []model.Movie) {
	sort.Slice(ms, func(i, j int) bool { return before(ms[i], ms[j]) })
}

func toEntry(rank int, m model.Movie) types.Entry {
	return types.Entry{Rank: rank, Title: m.Title, Elo: m.Elo, Rating: m.Rating, URI: m.URI}
}

// entries ranks an already sorted slice, keeping at most n rows.
func entries(ranked []model.Movie, n int) []types.Entry {
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]types.Entry, n)
	for i := 0; i < n; i++ {
		out[i] = toEntry(i+1, ranked[i])
	}
	return out
}

// observe records the latency of op and counts it as failed when *err is set.
// Use as: defer observe("upsert", time.Now(), &err).
func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && *err != nil {
		metrics.RecordStoreError(op)
	}
}
