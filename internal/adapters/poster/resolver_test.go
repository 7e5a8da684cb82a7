package poster

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/movie-elo/internal/adapters/mq/queue"
)

type stubFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	posters map[string]string
	err     error
}

func (s *stubFetcher) Lookup(_ context.Context, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[title]++
	if s.err != nil {
		return "", s.err
	}
	if u, ok := s.posters[title]; ok {
		return u, nil
	}
	return "", ErrNoPoster
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewCache(1000)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestResolver_CachesHitsAndMisses(t *testing.T) {
	f := &stubFetcher{posters: map[string]string{"Alien 1979": "https://img/alien.jpg"}}
	c := newTestCache(t)
	r := NewResolver(f, c, nil)
	ctx := context.Background()

	require.NoError(t, r.Handle(ctx, queue.Job{Title: "Alien 1979"}))
	require.NoError(t, r.Handle(ctx, queue.Job{Title: "Heat 1995"}))
	c.Wait()

	u, ok := c.Lookup("Alien 1979")
	assert.True(t, ok)
	assert.Equal(t, "https://img/alien.jpg", u)
	assert.Equal(t, "https://img/alien.jpg", c.Poster("Alien 1979"))

	u, ok = c.Lookup("Heat 1995")
	assert.True(t, ok)
	assert.Empty(t, u)

	require.NoError(t, r.Handle(ctx, queue.Job{Title: "Alien 1979"}))
	require.NoError(t, r.Handle(ctx, queue.Job{Title: "Heat 1995"}))
	assert.Equal(t, 1, f.calls["Alien 1979"])
	assert.Equal(t, 1, f.calls["Heat 1995"])
}

func TestResolver_UpstreamErrorNotCached(t *testing.T) {
	boom := errors.New("boom")
	f := &stubFetcher{err: boom}
	c := newTestCache(t)
	r := NewResolver(f, c, nil)

	err := r.Handle(context.Background(), queue.Job{Title: "Heat 1995"})
	assert.ErrorIs(t, err, boom)
	c.Wait()
	_, ok := c.Lookup("Heat 1995")
	assert.False(t, ok)
	assert.Empty(t, c.Poster("Unknown"))
}

type recordingForgetter struct {
	forgotten []string
}

func (f *recordingForgetter) Unrecord(_ context.Context, key string) {
	f.forgotten = append(f.forgotten, key)
}

func TestResolver_ForgetsFailedLookups(t *testing.T) {
	f := &stubFetcher{posters: map[string]string{"Alien 1979": "https://img/alien.jpg"}}
	c := newTestCache(t)
	fg := &recordingForgetter{}
	r := NewResolver(f, c, nil, WithForgetter(fg))
	ctx := context.Background()

	require.NoError(t, r.Handle(ctx, queue.Job{Title: "Alien 1979"}))
	require.NoError(t, r.Handle(ctx, queue.Job{Title: "Heat 1995"}))
	assert.Empty(t, fg.forgotten)

	f.err = ErrUpstream
	assert.ErrorIs(t, r.Handle(ctx, queue.Job{Title: "Jaws 1975"}), ErrUpstream)
	assert.Equal(t, []string{"Jaws 1975"}, fg.forgotten)
}
