// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat koanf keys, one per field, shared by the YAML file and MOVIELO_ env vars.
// - New() returns the defaults; Load layers file and env on top of them.
package config

import (
	"strings"

	"github.com/okian/movie-elo/internal/domain/elo"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory, badger or postgres.
	Store       string `koanf:"store"`
	BadgerPath  string `koanf:"badger_path"`
	DatabaseURL string `koanf:"database_url"`

	EloMean              float64 `koanf:"elo_mean"`
	EloSeedStdDev        float64 `koanf:"elo_seed_stddev"`
	EloMergeStdDev       float64 `koanf:"elo_merge_stddev"`
	EloSeedMode          string  `koanf:"elo_seed_mode"`
	EloKFactor           int     `koanf:"elo_k_factor"`
	EloCloseness         int     `koanf:"elo_closeness"`
	EloWindowSize        int     `koanf:"elo_window_size"`
	EloRetryFactor       int     `koanf:"elo_retry_factor"`
	EloRelaxOnExhaustion bool    `koanf:"elo_relax_on_exhaustion"`
	EloMeanCorrection    string  `koanf:"elo_mean_correction"`

	// OMDbAPIKey enables poster lookups when set.
	OMDbAPIKey     string  `koanf:"omdb_api_key"`
	OMDbBaseURL    string  `koanf:"omdb_base_url"`
	OMDbRatePerSec float64 `koanf:"omdb_rate_per_sec"`

	PosterWorkers    int `koanf:"poster_workers"`
	PosterQueueSize  int `koanf:"poster_queue_size"`
	PosterDedupeSize int `koanf:"poster_dedupe_size"`

	// MaxRankingsLimit caps GET /rankings?limit.
	MaxRankingsLimit int `koanf:"max_rankings_limit"`
	// MaxUploadBytes caps the multipart body of POST /upload.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// CORSAllowedOrigins is a comma separated origin list.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	RateLimitRequests  int `koanf:"rate_limit_requests"`
	RateLimitWindowSec int `koanf:"rate_limit_window_sec"`

	TracingEnabled  bool   `koanf:"tracing_enabled"`
	TracingEndpoint string `koanf:"tracing_endpoint"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		Store:                StoreMemory,
		BadgerPath:           "data/badger",
		EloMean:              elo.DefaultMean,
		EloSeedStdDev:        elo.DefaultSeedStdDev,
		EloMergeStdDev:       elo.DefaultMergeStdDev,
		EloSeedMode:          elo.ModeDirect.String(),
		EloKFactor:           elo.DefaultKFactor,
		EloCloseness:         elo.DefaultCloseness,
		EloWindowSize:        elo.DefaultWindowSize,
		EloRetryFactor:       elo.DefaultRetryFactor,
		EloRelaxOnExhaustion: true,
		EloMeanCorrection:    elo.CorrectionFirstK.String(),
		OMDbBaseURL:          "https://www.omdbapi.com/",
		OMDbRatePerSec:       5,
		PosterWorkers:        4,
		PosterQueueSize:      10_000,
		PosterDedupeSize:     50_000,
		MaxRankingsLimit:     500,
		MaxUploadBytes:       10 << 20,
		CORSAllowedOrigins:   "*",
		RateLimitRequests:    120,
		RateLimitWindowSec:   60,
		TracingEndpoint:      "localhost:4317",
	}
}

// Elo converts the elo_* keys into an engine configuration.
func (c *Config) Elo() (elo.Config, error) {
	mode, err := elo.ParseMode(c.EloSeedMode)
	if err != nil {
		return elo.Config{}, err
	}
	correction, err := elo.ParseCorrection(c.EloMeanCorrection)
	if err != nil {
		return elo.Config{}, err
	}
	return elo.Config{
		Mean:              c.EloMean,
		SeedStdDev:        c.EloSeedStdDev,
		MergeStdDev:       c.EloMergeStdDev,
		SeedMode:          mode,
		KFactor:           c.EloKFactor,
		Closeness:         c.EloCloseness,
		WindowSize:        c.EloWindowSize,
		RetryFactor:       c.EloRetryFactor,
		RelaxOnExhaustion: c.EloRelaxOnExhaustion,
		Correction:        correction,
	}, nil
}

// AllowedOrigins splits CORSAllowedOrigins, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
