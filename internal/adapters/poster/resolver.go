package poster

import (
	"context"
	"errors"

	"github.com/okian/movie-elo/internal/adapters/mq/queue"
	"github.com/okian/movie-elo/pkg/logger"
	"github.com/okian/movie-elo/pkg/metrics"
)

// Forgetter drops a title from the set of scheduled lookups so it can be
// scheduled again.
type Forgetter interface {
	Unrecord(ctx context.Context, key string)
}

// Resolver is the queue job handler that fills the cache.
type Resolver struct {
	fetcher Fetcher
	cache   *Cache
	forget  Forgetter
	logger  logger.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithForgetter makes failed lookups schedulable again through f.
func WithForgetter(f Forgetter) ResolverOption {
	return func(r *Resolver) {
		r.forget = f
	}
}

// NewResolver creates a Resolver.
func NewResolver(f Fetcher, c *Cache, l logger.Logger, opts ...ResolverOption) *Resolver {
	if l == nil {
		l = logger.Nop()
	}
	r := &Resolver{fetcher: f, cache: c, logger: l}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle resolves the poster of j.Title unless it is already cached.
func (r *Resolver) Handle(ctx context.Context, j queue.Job) error {
	if _, ok := r.cache.Lookup(j.Title); ok {
		metrics.RecordPosterCacheHit()
		return nil
	}
	u, err := r.fetcher.Lookup(ctx, j.Title)
	switch {
	case err == nil:
		r.cache.Set(j.Title, u)
		return nil
	case errors.Is(err, ErrNoPoster):
		r.cache.Set(j.Title, "")
		r.logger.Debug(ctx, "no poster", logger.String("title", j.Title))
		return nil
	default:
		// Not cached: a later read schedules the title again.
		if r.forget != nil {
			r.forget.Unrecord(ctx, j.Title)
		}
		return err
	}
}
