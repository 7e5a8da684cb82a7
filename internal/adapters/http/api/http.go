// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okian/movie-elo/internal/adapters/http/swagger"
	service "github.com/okian/movie-elo/internal/app"
	"github.com/okian/movie-elo/internal/domain/model"
	"github.com/okian/movie-elo/internal/domain/types"
	"github.com/okian/movie-elo/pkg/logger"
)

// HeaderOwner carries the id of the user whose population a request touches.
const HeaderOwner = "X-User-Id"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	Import(ctx context.Context, owner string, rows []model.RawRating) (service.ImportResult, error)
	NextMatchup(ctx context.Context, owner string) (model.Matchup, error)
	Vote(ctx context.Context, owner, matchupID, winner string) (service.VoteResult, error)
	Rankings(ctx context.Context, owner string, limit int) ([]Entry, error)
	Rank(ctx context.Context, owner, title string) (Entry, error)
	Reset(ctx context.Context, owner string) (int, error)
	// Poster returns the cached poster URL of title or "".
	Poster(title string) string
}

// Entry mirrors the read shape returned by ranking queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	validate *validator.Validate
	logger   logger.Logger

	maxLimit       int
	maxUploadBytes int64
	origins        []string
	rateRequests   int
	rateWindow     time.Duration

	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	rankingsHandler *RankingsHandler
	rankHandler     *RankHandler
	matchupHandler  *MatchupHandler
	uploadHandler   *UploadHandler
	moviesHandler   *MoviesHandler
}

// Option configures a Server.
type Option func(*Server)

// WithMaxRankingsLimit caps GET /rankings?limit.
func WithMaxRankingsLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithMaxUploadBytes caps the body of POST /upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithRateLimit allows requests per window and owner; requests <= 0 disables
// rate limiting.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) {
		s.rateRequests = requests
		if window > 0 {
			s.rateWindow = window
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger.Nop(),
		maxLimit:       500,
		maxUploadBytes: 10 << 20,
		origins:        []string{"*"},
		rateWindow:     time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.rankingsHandler = NewRankingsHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	s.matchupHandler = NewMatchupHandler(deps, s.validate)
	s.uploadHandler = NewUploadHandler(deps, s.maxUploadBytes)
	s.moviesHandler = NewMoviesHandler(deps)
	return s
}

// Handler builds the router with every route and middleware attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", HeaderOwner},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)
	r.Use(s.logServerErrors)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	swagger.Register(r)

	r.Group(func(r chi.Router) {
		if s.rateRequests > 0 {
			r.Use(httprate.Limit(s.rateRequests, s.rateWindow,
				httprate.WithKeyFuncs(keyByOwner),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, NewKind("api.rate_limit", ErrRateLimited))
				}),
			))
		}
		r.Use(RequireOwner)

		r.Post("/upload", s.uploadHandler.HandleUpload)
		r.Get("/matchup", s.matchupHandler.HandleGetMatchup)
		r.Post("/vote", s.matchupHandler.HandleVote)
		r.Get("/rankings", s.rankingsHandler.HandleGetRankings)
		r.Get("/rankings/{title}", s.rankHandler.HandleGetRank)
		r.Delete("/movies", s.moviesHandler.HandleDeleteMovies)
	})

	return otelhttp.NewHandler(r, "movie-elo",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// keyByOwner rate limits per user and falls back to the client IP.
func keyByOwner(r *http.Request) (string, error) {
	if owner := r.Header.Get(HeaderOwner); owner != "" {
		return "owner:" + owner, nil
	}
	return httprate.KeyByIP(r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
