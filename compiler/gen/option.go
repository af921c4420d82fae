package gen

import (
	"log/slog"

	"github.com/syssam/relgraph"
)

// Config holds the schema build settings.
type Config struct {
	// Logger receives build diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// StrictNames rejects reserved field names instead of dropping them.
	StrictNames bool
}

// Option configures a schema build.
type Option func(*Config) error

// WithLogger sets the logger used during the build.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return relgraph.NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// WithStrictNames reports model fields with reserved names as errors.
func WithStrictNames() Option {
	return func(c *Config) error {
		c.StrictNames = true
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// NewConfig creates a new Config with the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{Logger: slog.Default()}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}
