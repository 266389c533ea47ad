package engine

import (
	"github.com/ternarybob/arbor"

	"github.com/spektr-org/finchat/schema"
)

// ============================================================================
// ENGINE OPTIONS — Functional options for Analyze()
// ============================================================================

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	Registry      *schema.Registry
	Logger        arbor.ILogger
	TrendSections bool // changes, anomalies and the trend chart
	Breakdowns    bool // per-dimension monetary splits
	Vintages      bool // forecast vs realized comparison
}

// WithRegistry sets the concept registry. Defaults to schema.DefaultRegistry().
func WithRegistry(reg *schema.Registry) Option {
	return func(c *config) {
		if reg != nil {
			c.Registry = reg
		}
	}
}

// WithLogger routes engine logs to logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(c *config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithTrendSections toggles change and anomaly detection.
func WithTrendSections(enabled bool) Option {
	return func(c *config) {
		c.TrendSections = enabled
	}
}

// WithBreakdowns toggles per-dimension breakdowns.
func WithBreakdowns(enabled bool) Option {
	return func(c *config) {
		c.Breakdowns = enabled
	}
}

// WithVintages toggles the forecast vs realized comparison.
func WithVintages(enabled bool) Option {
	return func(c *config) {
		c.Vintages = enabled
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		TrendSections: true,
		Breakdowns:    true,
		Vintages:      true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = schema.DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = arbor.NewLogger()
	}
	return cfg
}
