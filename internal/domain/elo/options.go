package elo

import (
	"fmt"
	"strings"
)

// Mode selects how seeded z-scores are mapped to Elo.
type Mode int

const (
	// ModeDirect maps z straight onto the target distribution.
	ModeDirect Mode = iota
	// ModeRenormalized standardizes the sample of z first, so the output mean
	// and stddev match the targets up to rounding.
	ModeRenormalized
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if m == ModeRenormalized {
		return "renormalized"
	}
	return "direct"
}

// ParseMode parses "direct" or "renormalized".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct":
		return ModeDirect, nil
	case "renormalized", "renormalised":
		return ModeRenormalized, nil
	default:
		return ModeDirect, fmt.Errorf("%w: unknown seed mode %q", ErrInvalidArgument, s)
	}
}

// Correction selects the mean-preservation policy applied by Merge.
type Correction int

const (
	// CorrectionFirstK subtracts the rounded batch drift from the first k
	// existing movies. Best effort; the population mean is not guaranteed.
	CorrectionFirstK Correction = iota
	// CorrectionNone leaves the existing population untouched.
	CorrectionNone
)

// String returns the configuration name of the policy.
func (c Correction) String() string {
	if c == CorrectionNone {
		return "none"
	}
	return "first_k"
}

// ParseCorrection parses "first_k" or "none".
func ParseCorrection(s string) (Correction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first_k":
		return CorrectionFirstK, nil
	case "none", "off":
		return CorrectionNone, nil
	default:
		return CorrectionFirstK, fmt.Errorf("%w: unknown mean correction %q", ErrInvalidArgument, s)
	}
}

// Default engine parameters.
const (
	DefaultMean        = 1500
	DefaultSeedStdDev  = 350
	DefaultMergeStdDev = 100
	DefaultKFactor     = 32
	DefaultCloseness   = 150
	DefaultWindowSize  = 10
	DefaultRetryFactor = 10
)

// params holds the distribution targets shared by Seed and Merge.
type params struct {
	mean       float64
	stddev     float64
	mode       Mode
	correction Correction
}

// Option configures Seed and Merge.
type Option func(*params)

// WithMean sets the target mean.
func WithMean(mean float64) Option {
	return func(p *params) {
		p.mean = mean
	}
}

// WithStdDev sets the target standard deviation.
func WithStdDev(stddev float64) Option {
	return func(p *params) {
		p.stddev = stddev
	}
}

// WithMode sets the seeding mode. Merge always seeds in direct mode.
func WithMode(mode Mode) Option {
	return func(p *params) {
		p.mode = mode
	}
}

// WithCorrection sets the mean correction policy used by Merge.
func WithCorrection(c Correction) Option {
	return func(p *params) {
		p.correction = c
	}
}

func newParams(stddev float64, opts []Option) (params, error) {
	p := params{mean: DefaultMean, stddev: stddev}
	for _, opt := range opts {
		opt(&p)
	}
	if p.stddev <= 0 || isNonFinite(p.stddev) || isNonFinite(p.mean) {
		return p, fmt.Errorf("%w: mean %v stddev %v", ErrInvalidArgument, p.mean, p.stddev)
	}
	return p, nil
}

// Config bundles every tunable of the engine.
type Config struct {
	Mean              float64
	SeedStdDev        float64
	MergeStdDev       float64
	SeedMode          Mode
	KFactor           int
	Closeness         int
	WindowSize        int
	RetryFactor       int
	RelaxOnExhaustion bool
	Correction        Correction
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Mean:              DefaultMean,
		SeedStdDev:        DefaultSeedStdDev,
		MergeStdDev:       DefaultMergeStdDev,
		SeedMode:          ModeDirect,
		KFactor:           DefaultKFactor,
		Closeness:         DefaultCloseness,
		WindowSize:        DefaultWindowSize,
		RetryFactor:       DefaultRetryFactor,
		RelaxOnExhaustion: true,
		Correction:        CorrectionFirstK,
	}
}

// Validate reports the first parameter that cannot drive the engine.
func (c Config) Validate() error {
	switch {
	case isNonFinite(c.Mean):
		return fmt.Errorf("%w: mean must be finite", ErrInvalidArgument)
	case c.SeedStdDev <= 0 || isNonFinite(c.SeedStdDev):
		return fmt.Errorf("%w: seed stddev must be positive", ErrInvalidArgument)
	case c.MergeStdDev <= 0 || isNonFinite(c.MergeStdDev):
		return fmt.Errorf("%w: merge stddev must be positive", ErrInvalidArgument)
	case c.KFactor <= 0:
		return fmt.Errorf("%w: k-factor must be positive", ErrInvalidArgument)
	case c.Closeness < 0:
		return fmt.Errorf("%w: closeness must not be negative", ErrInvalidArgument)
	case c.WindowSize < 0:
		return fmt.Errorf("%w: window size must not be negative", ErrInvalidArgument)
	case c.RetryFactor <= 0:
		return fmt.Errorf("%w: retry factor must be positive", ErrInvalidArgument)
	}
	return nil
}

// SeedOptions returns the options for a cold-start Seed.
func (c Config) SeedOptions() []Option {
	return []Option{WithMean(c.Mean), WithStdDev(c.SeedStdDev), WithMode(c.SeedMode)}
}

// MergeOptions returns the options for an incremental Merge.
func (c Config) MergeOptions() []Option {
	return []Option{WithMean(c.Mean), WithStdDev(c.MergeStdDev), WithCorrection(c.Correction)}
}

// SelectorOptions returns the options for a Selector driven by src.
func (c Config) SelectorOptions(src Source) []SelectorOption {
	return []SelectorOption{
		WithSource(src),
		WithCloseness(c.Closeness),
		WithWindowSize(c.WindowSize),
		WithRetryFactor(c.RetryFactor),
		WithRelaxOnExhaustion(c.RelaxOnExhaustion),
	}
}
