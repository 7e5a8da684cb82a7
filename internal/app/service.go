// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/movie-elo/internal/adapters/mq/queue"
	"github.com/okian/movie-elo/internal/adapters/mq/worker"
	"github.com/okian/movie-elo/internal/adapters/poster"
	"github.com/okian/movie-elo/internal/adapters/repository"
	"github.com/okian/movie-elo/internal/domain/dedupe"
	"github.com/okian/movie-elo/internal/domain/elo"
	"github.com/okian/movie-elo/internal/domain/model"
	"github.com/okian/movie-elo/internal/domain/types"
	"github.com/okian/movie-elo/pkg/logger"
	"github.com/okian/movie-elo/pkg/metrics"
)

// Winner sides accepted by Vote.
const (
	SideA = "a"
	SideB = "b"
)

// Import kinds.
const (
	KindSeed  = "seed"
	KindMerge = "merge"
)

const tracerName = "github.com/okian/movie-elo/internal/app"

// ImportResult describes what an import did to the owner's population.
type ImportResult struct {
	Kind     string
	Added    []model.Movie
	Adjusted []string
	Offset   int
	Skipped  int
	Total    int

	corrected []model.Movie
}

// VoteResult carries both movies after a vote and their scores before it.
type VoteResult struct {
	Winner       model.Movie
	Loser        model.Movie
	OldWinnerElo int
	OldLoserElo  int
}

// WinnerDelta is the Elo gained by the winner.
func (r VoteResult) WinnerDelta() int { return r.Winner.Elo - r.OldWinnerElo }

// LoserDelta is the Elo change of the loser, never positive.
func (r VoteResult) LoserDelta() int { return r.Loser.Elo - r.OldLoserElo }

// Service implements the API dependencies for per-owner movie ratings.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	elo     elo.Config
	fetcher poster.Fetcher
	cache   *poster.Cache
	deduper dedupe.Deduper
	queue   queue.Queue
	pool    *worker.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	maxRankings int
	maxPending  int
	maxSessions int

	seed   int64
	seeded bool
	randMu sync.Mutex
	rand   *rand.Rand

	sessions *sessionSet
	pending  atomic.Int64

	started bool

	logger logger.Logger
	tracer trace.Tracer
}

// New constructs a Service. Without WithStore the population lives in memory;
// without WithPosterFetcher no posters are looked up.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		elo:         elo.DefaultConfig(),
		workerCount: 4,
		queueSize:   10_000,
		dedupeSize:  50_000,
		maxRankings: 500,
		maxPending:  32,
		maxSessions: 10_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = newSessionSet(s.maxSessions)
	if err := s.elo.Validate(); err != nil {
		return nil, err
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.store == nil {
		s.store = repository.NewTreapStore()
	}
	if !s.seeded {
		s.seed = time.Now().UnixNano()
	}
	s.rand = rand.New(rand.NewSource(s.seed)) //nolint:gosec // matchup selection is not security sensitive

	if s.fetcher != nil {
		cache, err := poster.NewCache(int64(s.dedupeSize))
		if err != nil {
			return nil, err
		}
		s.cache = cache
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
		s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	}
	return s, nil
}

// Start launches the poster workers. It is a no-op without a poster fetcher.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting movie rating service...")

	if s.fetcher != nil {
		resolver := poster.NewResolver(s.fetcher, s.cache, s.logger.Named("poster"), poster.WithForgetter(s.deduper))
		s.pool = worker.NewPool(s.workerCount, s.queue, resolver, worker.WithLogger(s.logger.Named("worker")))
		s.pool.Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "movie rating service started",
		logger.Bool("posters", s.fetcher != nil),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the poster queue until ctx expires and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping movie rating service...")

	var errs []error
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "movie rating service stopped")
	return errors.Join(errs...)
}

// Import folds rows into the owner's population. An empty population is
// seeded cold with the configured mode and seed stddev; otherwise the rows
// are merged with the merge stddev and correction policy.
func (s *Service) Import(ctx context.Context, owner string, rows []model.RawRating) (res ImportResult, err error) {
	ctx, span := s.tracer.Start(ctx, "service.Import", trace.WithAttributes(
		attribute.String("owner", owner),
		attribute.Int("rows", len(rows)),
	))
	defer func() { endSpan(span, err) }()

	if err := repository.ValidateOwner(owner); err != nil {
		return ImportResult{}, err
	}
	sess := s.acquire(owner)
	defer s.sessions.release(sess)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	existing, err := s.store.Population(ctx, owner)
	if err != nil {
		return ImportResult{}, err
	}
	if len(existing) == 0 {
		res, err = s.seedCold(ctx, rows)
	} else {
		res, err = s.merge(existing, rows)
	}
	if err != nil {
		return ImportResult{}, err
	}

	if err := s.store.Upsert(ctx, owner, res.persist()...); err != nil {
		return ImportResult{}, err
	}
	res.Total = len(existing) + len(res.Added)

	metrics.RecordImport(res.Kind, len(res.Added), res.Skipped)
	span.SetAttributes(
		attribute.String("kind", res.Kind),
		attribute.Int("added", len(res.Added)),
		attribute.Int("offset", res.Offset),
	)
	s.logger.Info(ctx, "import applied",
		logger.String("owner", owner),
		logger.String("kind", res.Kind),
		logger.Int("added", len(res.Added)),
		logger.Int("adjusted", len(res.Adjusted)),
		logger.Int("offset", res.Offset),
		logger.Int("skipped", res.Skipped),
	)

	for _, m := range res.Added {
		s.enqueuePoster(ctx, m.Title)
	}
	return res, nil
}

func (s *Service) seedCold(ctx context.Context, rows []model.RawRating) (ImportResult, error) {
	fresh := elo.Filter(nil, rows)
	if len(fresh) == 0 {
		return ImportResult{}, ErrEmptyImport
	}
	added, err := elo.Seed(fresh, s.elo.SeedOptions()...)
	if errors.Is(err, elo.ErrDegenerateDistribution) {
		s.logger.Warn(ctx, "degenerate seed, falling back to direct mode", logger.Int("rows", len(fresh)))
		added, err = elo.Seed(fresh, append(s.elo.SeedOptions(), elo.WithMode(elo.ModeDirect))...)
	}
	if err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Kind: KindSeed, Added: added, Skipped: len(rows) - len(fresh)}, nil
}

func (s *Service) merge(existing []model.Movie, rows []model.RawRating) (ImportResult, error) {
	mr, err := elo.Merge(existing, rows, s.elo.MergeOptions()...)
	if err != nil {
		return ImportResult{}, err
	}
	if len(mr.Added) > 0 {
		metrics.RecordMerge(mr.Offset, len(mr.Adjusted))
	}
	res := ImportResult{
		Kind:     KindMerge,
		Added:    mr.Added,
		Adjusted: mr.Adjusted,
		Offset:   mr.Offset,
		Skipped:  mr.Skipped,
	}
	if len(mr.Adjusted) > 0 {
		adjusted := make(map[string]model.Movie, len(mr.Adjusted))
		for _, m := range mr.Existing {
			adjusted[m.Title] = m
		}
		res.corrected = make([]model.Movie, 0, len(mr.Adjusted))
		for _, title := range mr.Adjusted {
			res.corrected = append(res.corrected, adjusted[title])
		}
	}
	return res, nil
}

// persist lists the movies an import must write: corrected existing movies
// first, then the added ones.
func (res ImportResult) persist() []model.Movie {
	out := make([]model.Movie, 0, len(res.corrected)+len(res.Added))
	out = append(out, res.corrected...)
	return append(out, res.Added...)
}

// NextMatchup picks the next pair for owner and registers it for a vote.
func (s *Service) NextMatchup(ctx context.Context, owner string) (m model.Matchup, err error) {
	ctx, span := s.tracer.Start(ctx, "service.NextMatchup", trace.WithAttributes(attribute.String("owner", owner)))
	defer func() { endSpan(span, err) }()

	if err := repository.ValidateOwner(owner); err != nil {
		return model.Matchup{}, err
	}
	sess := s.acquire(owner)
	defer s.sessions.release(sess)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	pop, err := s.store.Population(ctx, owner)
	if err != nil {
		return model.Matchup{}, err
	}
	a, b, err := sess.selector.Next(pop)
	if err != nil {
		metrics.RecordSelectionFailure()
		return model.Matchup{}, err
	}

	m = model.Matchup{ID: uuid.NewString(), A: a, B: b}
	dropped := sess.issue(m, s.maxPending)
	metrics.UpdatePendingMatchups(int(s.pending.Add(int64(1 - dropped))))
	s.schedulePoster(ctx, a.Title)
	s.schedulePoster(ctx, b.Title)
	return m, nil
}

// Vote settles a pending matchup. winner is SideA or SideB. Both movies are
// reloaded so the update applies to their current scores.
func (s *Service) Vote(ctx context.Context, owner, matchupID, winner string) (res VoteResult, err error) {
	ctx, span := s.tracer.Start(ctx, "service.Vote", trace.WithAttributes(
		attribute.String("owner", owner),
		attribute.String("matchup", matchupID),
	))
	defer func() { endSpan(span, err) }()

	if err := repository.ValidateOwner(owner); err != nil {
		return VoteResult{}, err
	}
	if winner != SideA && winner != SideB {
		return VoteResult{}, fmt.Errorf("%w: %q", ErrInvalidWinner, winner)
	}
	sess := s.acquire(owner)
	defer s.sessions.release(sess)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	m, ok := sess.take(matchupID)
	if !ok {
		return VoteResult{}, fmt.Errorf("%w: %s", ErrUnknownMatchup, matchupID)
	}
	metrics.UpdatePendingMatchups(int(s.pending.Add(-1)))

	winTitle, loseTitle := m.A.Title, m.B.Title
	if winner == SideB {
		winTitle, loseTitle = loseTitle, winTitle
	}
	w, err := s.store.Get(ctx, owner, winTitle)
	if err != nil {
		return VoteResult{}, err
	}
	l, err := s.store.Get(ctx, owner, loseTitle)
	if err != nil {
		return VoteResult{}, err
	}

	nw, nl := elo.Update(w, l, s.elo.KFactor)
	if err := s.store.Upsert(ctx, owner, nw, nl); err != nil {
		return VoteResult{}, err
	}

	res = VoteResult{Winner: nw, Loser: nl, OldWinnerElo: w.Elo, OldLoserElo: l.Elo}
	metrics.RecordVote(res.WinnerDelta())
	s.logger.Debug(ctx, "vote recorded",
		logger.String("owner", owner),
		logger.String("winner", nw.Title),
		logger.Int("winnerDelta", res.WinnerDelta()),
		logger.String("loser", nl.Title),
		logger.Int("loserDelta", res.LoserDelta()),
	)
	return res, nil
}

// Rankings returns the owner's top movies; limit is capped at the configured
// maximum.
func (s *Service) Rankings(ctx context.Context, owner string, limit int) ([]types.Entry, error) {
	if limit > s.maxRankings {
		limit = s.maxRankings
	}
	entries, err := s.store.TopN(ctx, owner, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Poster = s.posterFor(ctx, entries[i].Title)
	}
	return entries, nil
}

// Rank returns the rank of one title.
func (s *Service) Rank(ctx context.Context, owner, title string) (types.Entry, error) {
	e, err := s.store.Rank(ctx, owner, title)
	if err != nil {
		return types.Entry{}, err
	}
	e.Poster = s.posterFor(ctx, e.Title)
	return e, nil
}

// Reset deletes the owner's population and forgets its comparison session.
func (s *Service) Reset(ctx context.Context, owner string) (int, error) {
	if err := repository.ValidateOwner(owner); err != nil {
		return 0, err
	}
	sess := s.acquire(owner)
	defer s.sessions.release(sess)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	n, err := s.store.DeleteAll(ctx, owner)
	if err != nil {
		return 0, err
	}
	dropped := sess.reset()
	metrics.UpdatePendingMatchups(int(s.pending.Add(int64(-dropped))))
	if s.sessions.drop(sess) {
		metrics.UpdateActiveSessions(s.sessions.len())
	}
	s.logger.Info(ctx, "population reset", logger.String("owner", owner), logger.Int("deleted", n))
	return n, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.len()

	stats := map[string]interface{}{
		"started":         s.started,
		"posters":         s.fetcher != nil,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"activeSessions":  sessions,
		"pendingMatchups": s.pending.Load(),
	}
	if s.queue != nil {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	if s.deduper != nil {
		stats["dedupeEntries"] = s.deduper.Size()
	}
	metrics.UpdateActiveSessions(sessions)
	return stats
}

// acquire returns the owner's comparison session, creating it on first use.
// Callers release it with s.sessions.release.
func (s *Service) acquire(owner string) *session {
	sess, evicted := s.sessions.acquire(owner, func() *session {
		s.randMu.Lock()
		src := rand.New(rand.NewSource(s.rand.Int63())) //nolint:gosec // see New
		s.randMu.Unlock()
		return newSession(owner, s.elo, src, metrics.RecordSelection)
	})
	if len(evicted) > 0 {
		dropped := 0
		for _, old := range evicted {
			old.mu.Lock()
			dropped += len(old.pending)
			old.mu.Unlock()
		}
		metrics.UpdatePendingMatchups(int(s.pending.Add(int64(-dropped))))
	}
	metrics.UpdateActiveSessions(s.sessions.len())
	return sess
}

// posterFor returns the cached poster of title and schedules a lookup when
// the title has never been resolved.
func (s *Service) posterFor(ctx context.Context, title string) string {
	if s.cache == nil {
		return ""
	}
	u, ok := s.cache.Lookup(title)
	if !ok {
		s.enqueuePoster(ctx, title)
	}
	return u
}

// schedulePoster enqueues a lookup for title unless it is already cached.
func (s *Service) schedulePoster(ctx context.Context, title string) {
	_ = s.posterFor(ctx, title)
}

// enqueuePoster schedules a poster lookup for title unless one is queued or
// done. Failed lookups are forgotten by the resolver.
func (s *Service) enqueuePoster(ctx context.Context, title string) {
	if s.queue == nil {
		return
	}
	if s.deduper.SeenAndRecord(ctx, title) {
		return
	}
	if err := s.queue.Enqueue(ctx, queue.Job{Title: title}); err != nil {
		s.deduper.Unrecord(ctx, title)
		s.logger.Debug(ctx, "poster lookup not queued", logger.String("title", title), logger.Error(err))
	}
}

// Poster returns the cached poster URL of title, or "" when unknown.
func (s *Service) Poster(title string) string {
	if s.cache == nil {
		return ""
	}
	return s.cache.Poster(title)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
