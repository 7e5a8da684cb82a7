package service

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/movie-elo/internal/adapters/poster"
	"github.com/okian/movie-elo/internal/adapters/repository"
	"github.com/okian/movie-elo/internal/domain/elo"
	"github.com/okian/movie-elo/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the population store. The service closes it on Stop.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithEloConfig sets the rating engine parameters.
func WithEloConfig(cfg elo.Config) Option {
	return func(s *Service) {
		s.elo = cfg
	}
}

// WithPosterFetcher enables background poster lookups.
func WithPosterFetcher(f poster.Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithWorkerCount sets the number of poster workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the poster queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many titles the poster deduper remembers.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxRankings caps the limit accepted by Rankings.
func WithMaxRankings(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRankings = n
		}
	}
}

// WithMaxPending caps the unanswered matchups kept per owner; the oldest is
// discarded first.
func WithMaxPending(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPending = n
		}
	}
}

// WithMaxSessions caps the comparison sessions kept in memory. The least
// recently used idle session is dropped first, with its pending matchups.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithRandSeed makes matchup selection reproducible.
func WithRandSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
		s.seeded = true
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer used for service spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}
