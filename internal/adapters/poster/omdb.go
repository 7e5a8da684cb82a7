// Package poster resolves movie poster URLs through OMDb and caches them.
package poster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/movie-elo/pkg/logger"
	"github.com/okian/movie-elo/pkg/metrics"
)

const (
	defaultBaseURL    = "https://www.omdbapi.com/"
	defaultTimeout    = 5 * time.Second
	defaultRatePerSec = 5
	notAvailable      = "N/A"
)

// titleYear matches "Name YYYY".
var titleYear = regexp.MustCompile(`^(.+?)\s(\d{4})$`)

// Fetcher looks up the poster URL of a title.
type Fetcher interface {
	Lookup(ctx context.Context, title string) (string, error)
}

// OMDbClient queries the OMDb title endpoint.
type OMDbClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
	logger  logger.Logger

	failureThreshold uint32
	openTimeout      time.Duration
}

// ClientOption configures an OMDbClient.
type ClientOption func(*OMDbClient)

// WithBaseURL overrides the OMDb endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *OMDbClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *OMDbClient) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSec float64) ClientOption {
	return func(c *OMDbClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), max(1, int(perSec)))
		}
	}
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) ClientOption {
	return func(c *OMDbClient) {
		if failures > 0 {
			c.failureThreshold = failures
		}
		if openFor > 0 {
			c.openTimeout = openFor
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *OMDbClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewOMDbClient creates a client for apiKey.
func NewOMDbClient(apiKey string, opts ...ClientOption) *OMDbClient {
	c := &OMDbClient{
		apiKey:           apiKey,
		baseURL:          defaultBaseURL,
		http:             &http.Client{Timeout: defaultTimeout},
		limiter:          rate.NewLimiter(defaultRatePerSec, defaultRatePerSec),
		logger:           logger.Nop(),
		failureThreshold: 5,
		openTimeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "omdb",
		Timeout: c.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.failureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoPoster) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdatePosterBreakerState(int(to))
			c.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return c
}

// SplitTitle separates a trailing four digit year from a "Name YYYY" title.
func SplitTitle(title string) (name, year string) {
	if m := titleYear.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	return title, ""
}

type omdbResponse struct {
	Poster   string `json:"Poster"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// Lookup returns the poster URL of title, ErrNoPoster when OMDb has none, or
// an error wrapping ErrUpstream or gobreaker.ErrOpenState.
func (c *OMDbClient) Lookup(ctx context.Context, title string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	poster, err := c.breaker.Execute(func() (string, error) {
		return c.fetch(ctx, title)
	})
	switch {
	case err == nil:
		metrics.RecordPosterLookup("found")
	case errors.Is(err, ErrNoPoster):
		metrics.RecordPosterLookup("not_found")
	default:
		metrics.RecordPosterLookup("error")
	}
	return poster, err
}

func (c *OMDbClient) fetch(ctx context.Context, title string) (string, error) {
	name, year := SplitTitle(title)
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("t", name)
	if year != "" {
		q.Set("y", year)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	var body omdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode: %w", ErrUpstream, err)
	}
	if body.Poster == "" || body.Poster == notAvailable || strings.EqualFold(body.Response, "False") {
		return "", fmt.Errorf("%w: %s", ErrNoPoster, title)
	}
	return body.Poster, nil
}
