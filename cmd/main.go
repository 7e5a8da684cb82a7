package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/movie-elo/internal/adapters/http/api"
	"github.com/okian/movie-elo/internal/adapters/poster"
	"github.com/okian/movie-elo/internal/adapters/repository"
	app "github.com/okian/movie-elo/internal/app"
	"github.com/okian/movie-elo/internal/config"
	"github.com/okian/movie-elo/internal/observability"
	"github.com/okian/movie-elo/pkg/logger"
	"github.com/okian/movie-elo/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "movie-elo exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	tracing, err := observability.NewProvider(ctx, observability.TracingConfig{
		Enabled:  cfg.TracingEnabled,
		Endpoint: cfg.TracingEndpoint,
	}, log.Named("tracing"))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn(ctx, "tracer shutdown failed", logger.Error(err))
		}
	}()

	svc, err := buildService(ctx, cfg, log, tracing)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(cfg, svc, log)
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildStore opens the configured persistence backend.
func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreBadger:
		log.Info(ctx, "using badger store", logger.String("path", cfg.BadgerPath))
		st, err := repository.OpenBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StorePostgres:
		log.Info(ctx, "using postgres store")
		st, err := repository.OpenPostgresStore(ctx, cfg.DatabaseURL, log.Named("postgres"))
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		log.Info(ctx, "using treap store")
		return repository.NewTreapStore(), nil
	}
}

// buildService wires the store, the rating engine and poster lookups.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger, tracing *observability.Provider) (*app.Service, error) {
	eloCfg, err := cfg.Elo()
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithTracer(tracing.Tracer("movie-elo/service")),
		app.WithStore(store),
		app.WithEloConfig(eloCfg),
		app.WithWorkerCount(cfg.PosterWorkers),
		app.WithQueueSize(cfg.PosterQueueSize),
		app.WithDedupeSize(cfg.PosterDedupeSize),
		app.WithMaxRankings(cfg.MaxRankingsLimit),
	}
	if cfg.OMDbAPIKey != "" {
		opts = append(opts, app.WithPosterFetcher(poster.NewOMDbClient(cfg.OMDbAPIKey,
			poster.WithBaseURL(cfg.OMDbBaseURL),
			poster.WithRateLimit(cfg.OMDbRatePerSec),
			poster.WithLogger(log.Named("omdb")),
		)))
	} else {
		log.Info(ctx, "omdb_api_key not set; poster lookups disabled")
	}

	svc, err := app.New(opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

func newHTTPServer(cfg *config.Config, svc *app.Service, log logger.Logger) *http.Server {
	apiServer := api.NewServer(svc,
		api.WithLogger(log.Named("api")),
		api.WithMaxRankingsLimit(cfg.MaxRankingsLimit),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
		api.WithAllowedOrigins(cfg.AllowedOrigins()...),
		api.WithRateLimit(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowSec)*time.Second),
	)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the service gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue and session gauges.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
