package elo

import (
	"fmt"
	"math/rand"

	"github.com/okian/movie-elo/internal/domain/model"
)

// Source is the randomness a Selector draws from. *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// Observer is told how many draws a selection took and whether the recent
// window had to be ignored.
type Observer func(attempts int, relaxed bool)

// Selector picks the next pair to compare. It is not safe for concurrent use;
// each comparison session owns one.
type Selector struct {
	src         Source
	window      *RecentWindow
	closeness   int
	retryFactor int
	relax       bool
	observe     Observer
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithSource sets the random source.
func WithSource(src Source) SelectorOption {
	return func(s *Selector) {
		if src != nil {
			s.src = src
		}
	}
}

// WithCloseness sets the Elo distance below which pairs are preferred.
func WithCloseness(closeness int) SelectorOption {
	return func(s *Selector) {
		if closeness >= 0 {
			s.closeness = closeness
		}
	}
}

// WithWindowSize sets how many recent matchups are avoided.
func WithWindowSize(size int) SelectorOption {
	return func(s *Selector) {
		if size >= 0 {
			s.window = NewRecentWindow(size)
		}
	}
}

// WithRetryFactor caps draws per selection at factor * population size.
func WithRetryFactor(factor int) SelectorOption {
	return func(s *Selector) {
		if factor > 0 {
			s.retryFactor = factor
		}
	}
}

// WithRelaxOnExhaustion controls what happens when no fresh pair is found
// within the cap: repeat a recent pair (true) or fail (false).
func WithRelaxOnExhaustion(relax bool) SelectorOption {
	return func(s *Selector) {
		s.relax = relax
	}
}

// WithObserver registers a callback invoked after every successful selection.
func WithObserver(fn Observer) SelectorOption {
	return func(s *Selector) {
		s.observe = fn
	}
}

// NewSelector returns a Selector with closeness 150, window 10, retry
// factor 10 and relaxation enabled.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{
		src:         rand.New(rand.NewSource(rand.Int63())), //nolint:gosec // matchup picking is not security sensitive
		window:      NewRecentWindow(DefaultWindowSize),
		closeness:   DefaultCloseness,
		retryFactor: DefaultRetryFactor,
		relax:       true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window exposes the recent matchup window.
func (s *Selector) Window() *RecentWindow { return s.window }

// Next returns two distinct movies of population to compare, biased toward
// close Elo scores and avoiding pairs in the recent window.
func (s *Selector) Next(population []model.Movie) (model.Movie, model.Movie, error) {
	n := len(population)
	if n < 2 {
		return model.Movie{}, model.Movie{}, fmt.Errorf("%w: population has %d", ErrInsufficientItems, n)
	}

	maxAttempts := s.retryFactor * n
	if s.exhausted(population) {
		maxAttempts = 0
	}

	var a, b model.Movie
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		var ok bool
		a, b, ok = s.draw(population)
		if !ok {
			return model.Movie{}, model.Movie{}, fmt.Errorf("%w: no distinct titles", ErrInsufficientItems)
		}
		key := model.MatchupKey(a.Title, b.Title)
		if !s.window.Contains(key) {
			s.window.Push(key)
			s.notify(attempts, false)
			return a, b, nil
		}
	}

	if !s.relax {
		return model.Movie{}, model.Movie{}, fmt.Errorf("%w: %w", ErrInsufficientItems, ErrWindowExhausted)
	}
	if attempts == 0 {
		attempts++
		var ok bool
		a, b, ok = s.draw(population)
		if !ok {
			return model.Movie{}, model.Movie{}, fmt.Errorf("%w: no distinct titles", ErrInsufficientItems)
		}
	}
	s.window.Push(model.MatchupKey(a.Title, b.Title))
	s.notify(attempts, true)
	return a, b, nil
}

// draw picks a uniformly, then b among the movies within closeness of a,
// falling back to every other movie.
func (s *Selector) draw(population []model.Movie) (model.Movie, model.Movie, bool) {
	a := population[s.src.Intn(len(population))]

	candidates := make([]int, 0, len(population)-1)
	for i, m := range population {
		if m.Title != a.Title && abs(m.Elo-a.Elo) < s.closeness {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		for i, m := range population {
			if m.Title != a.Title {
				candidates = append(candidates, i)
			}
		}
	}
	if len(candidates) == 0 {
		return model.Movie{}, model.Movie{}, false
	}
	return a, population[candidates[s.src.Intn(len(candidates))]], true
}

// exhausted reports whether every pair of population is already in the window.
func (s *Selector) exhausted(population []model.Movie) bool {
	n := len(population)
	pairs := n * (n - 1) / 2
	if pairs > s.window.Len() {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if !s.window.Contains(model.MatchupKey(population[i].Title, population[j].Title)) {
				return false
			}
		}
	}
	return true
}

func (s *Selector) notify(attempts int, relaxed bool) {
	if s.observe != nil {
		s.observe(attempts, relaxed)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
