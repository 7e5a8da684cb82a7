package repository

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/movie-elo/internal/domain/model"
	"github.com/okian/movie-elo/internal/domain/types"
)

// Treap-based, in-memory Store implementation.
//
// Each owner has its own treap keyed by (Elo desc, title asc), so an in-order
// walk yields the ranking and subtree sizes give ranks in O(log n).

type node struct {
	movie model.Movie
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, m model.Movie, prio uint64) *node {
	if n == nil {
		return &node{movie: m, prio: prio, size: 1}
	}
	if before(m, n.movie) {
		n.left = insert(n.left, m, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, m, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, m model.Movie) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.movie.Title == m.Title && n.movie.Elo == m.Elo:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, m)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, m)
		}
	case before(m, n.movie):
		n.left = remove(n.left, m)
	default:
		n.right = remove(n.right, m)
	}
	fix(n)
	return n
}

// rankOf returns the 1-based in-order position of m, which must be present.
func rankOf(n *node, m model.Movie) int {
	rank := 0
	for n != nil {
		if n.movie.Title == m.Title && n.movie.Elo == m.Elo {
			return rank + nsize(n.left) + 1
		}
		if before(m, n.movie) {
			n = n.left
		} else {
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collect appends up to limit movies in rank order; limit < 0 means all.
func collect(n *node, limit int, out *[]model.Movie) {
	if n == nil || (limit >= 0 && len(*out) >= limit) {
		return
	}
	collect(n.left, limit, out)
	if limit < 0 || len(*out) < limit {
		*out = append(*out, n.movie)
	}
	collect(n.right, limit, out)
}

// tree is one owner's population.
type tree struct {
	root    *node
	byTitle map[string]model.Movie
}

// TreapStore keeps every population in memory.
type TreapStore struct {
	mu     sync.RWMutex
	owners map[string]*tree
	seed   int64
	rng    *rand.Rand
	closed bool
}

// NewTreapStore constructs an empty in-memory store.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		owners: make(map[string]*tree),
		seed:   time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewSource(s.seed)) //nolint:gosec // treap balance only
	return s
}

func (s *TreapStore) read(owner string) (*tree, error) {
	if err := ValidateOwner(owner); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, ErrClosed
	}
	return s.owners[owner], nil
}

func (s *TreapStore) Population(_ context.Context, owner string) (_ []model.Movie, err error) {
	defer observe("population", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.read(owner)
	if err != nil || t == nil {
		return nil, err
	}
	out := make([]model.Movie, 0, len(t.byTitle))
	collect(t.root, -1, &out)
	return out, nil
}

func (s *TreapStore) Get(_ context.Context, owner, title string) (_ model.Movie, err error) {
	defer observe("get", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.read(owner)
	if err != nil {
		return model.Movie{}, err
	}
	if t != nil {
		if m, ok := t.byTitle[title]; ok {
			return m, nil
		}
	}
	return model.Movie{}, ErrNotFound
}

func (s *TreapStore) Upsert(_ context.Context, owner string, movies ...model.Movie) (err error) {
	defer observe("upsert", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	t := s.owners[owner]
	if t == nil {
		t = &tree{byTitle: make(map[string]model.Movie, len(movies))}
		s.owners[owner] = t
	}
	for _, m := range movies {
		if old, ok := t.byTitle[m.Title]; ok {
			t.root = remove(t.root, old)
		}
		t.byTitle[m.Title] = m
		t.root = insert(t.root, m, s.rng.Uint64())
	}
	return nil
}

func (s *TreapStore) DeleteAll(_ context.Context, owner string) (_ int, err error) {
	defer observe("delete_all", time.Now(), &err)
	if err := ValidateOwner(owner); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	t := s.owners[owner]
	if t == nil {
		return 0, nil
	}
	delete(s.owners, owner)
	return len(t.byTitle), nil
}

func (s *TreapStore) TopN(_ context.Context, owner string, n int) (_ []types.Entry, err error) {
	defer observe("top_n", time.Now(), &err)
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.read(owner)
	if err != nil || t == nil {
		return []types.Entry{}, err
	}
	ranked := make([]model.Movie, 0, min(n, len(t.byTitle)))
	collect(t.root, n, &ranked)
	return entries(ranked, n), nil
}

func (s *TreapStore) Rank(_ context.Context, owner, title string) (_ types.Entry, err error) {
	defer observe("rank", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.read(owner)
	if err != nil {
		return types.Entry{}, err
	}
	if t == nil {
		return types.Entry{}, ErrNotFound
	}
	m, ok := t.byTitle[title]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	return toEntry(rankOf(t.root, m), m), nil
}

func (s *TreapStore) Count(_ context.Context, owner string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.read(owner)
	if err != nil || t == nil {
		return 0, err
	}
	return len(t.byTitle), nil
}

// Close drops every population; further calls fail with ErrClosed.
func (s *TreapStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.owners = nil
	return nil
}
