package poster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTitle(t *testing.T) {
	cases := []struct {
		in, name, year string
	}{
		{"Alien 1979", "Alien", "1979"},
		{"Blade Runner 2049 2017", "Blade Runner 2049", "2017"},
		{"Heat", "Heat", ""},
		{"1917", "1917", ""},
		{"Up 09", "Up 09", ""},
	}
	for _, tc := range cases {
		name, year := SplitTitle(tc.in)
		assert.Equal(t, tc.name, name, tc.in)
		assert.Equal(t, tc.year, year, tc.in)
	}
}

func TestOMDbClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("apikey"))
		switch q.Get("t") {
		case "Alien":
			assert.Equal(t, "1979", q.Get("y"))
			_, _ = w.Write([]byte(`{"Title":"Alien","Poster":"https://img/alien.jpg","Response":"True"}`))
		case "Obscure":
			_, _ = w.Write([]byte(`{"Title":"Obscure","Poster":"N/A","Response":"True"}`))
		case "Missing":
			_, _ = w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewOMDbClient("secret", WithBaseURL(srv.URL), WithRateLimit(1000))
	ctx := context.Background()

	u, err := c.Lookup(ctx, "Alien 1979")
	require.NoError(t, err)
	assert.Equal(t, "https://img/alien.jpg", u)

	_, err = c.Lookup(ctx, "Obscure")
	assert.ErrorIs(t, err, ErrNoPoster)

	_, err = c.Lookup(ctx, "Missing 2001")
	assert.ErrorIs(t, err, ErrNoPoster)

	_, err = c.Lookup(ctx, "Broken")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestOMDbClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOMDbClient("k", WithBaseURL(srv.URL), WithRateLimit(1000), WithBreaker(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Lookup(ctx, "Heat")
		require.ErrorIs(t, err, ErrUpstream)
	}
	_, err := c.Lookup(ctx, "Heat")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), calls.Load())
}

func TestOMDbClient_NoPosterKeepsBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Response":"False"}`))
	}))
	defer srv.Close()

	c := NewOMDbClient("k", WithBaseURL(srv.URL), WithRateLimit(1000), WithBreaker(1, time.Minute))
	for i := 0; i < 3; i++ {
		_, err := c.Lookup(context.Background(), "Heat")
		assert.ErrorIs(t, err, ErrNoPoster)
	}
}

func TestOMDbClient_CanceledContext(t *testing.T) {
	c := NewOMDbClient("k", WithBaseURL("http://127.0.0.1:0"), WithRateLimit(1000))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Lookup(ctx, "Heat")
	assert.Error(t, err)
}
