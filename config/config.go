// Package config loads the relgraph.yml configuration of the command
// line tool.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/client"
	"github.com/syssam/relgraph/compiler/gen"
	"github.com/syssam/relgraph/dialect"
)

// DefaultFile is the configuration file read when none is given.
const DefaultFile = "relgraph.yml"

// Environment variables overriding the file.
const (
	EnvSchema   = "RELGRAPH_SCHEMA"
	EnvDSN      = "RELGRAPH_DSN"
	EnvLogLevel = "RELGRAPH_LOG_LEVEL"
)

// Config is the tool configuration.
type Config struct {
	// Schema is the path of the model file, relative to the
	// configuration file.
	Schema      string   `yaml:"schema"`
	Database    Database `yaml:"database"`
	Migrate     bool     `yaml:"migrate"`
	StrictNames bool     `yaml:"strictNames"`
	Log         Log      `yaml:"log"`

	dir string
}

// Database configures the connection.
type Database struct {
	Driver        string   `yaml:"driver"`
	DSN           string   `yaml:"dsn"`
	SlowThreshold Duration `yaml:"slowThreshold"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return relgraph.NewConfigError("database.slowThreshold", n.Value, "invalid duration")
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Database: Database{Driver: dialect.SQLite},
		Log:      Log{Level: "info"},
		dir:      ".",
	}
}

// Load reads the configuration file at path, or DefaultFile when path
// is empty. A missing DefaultFile yields the defaults; a missing
// explicit file is an error. A .env file next to the configuration is
// loaded into the environment without overriding it, then the
// RELGRAPH_ variables override the file.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	c := Default()
	c.dir = filepath.Dir(path)
	if err := godotenv.Load(filepath.Join(c.dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("relgraph/config: load .env: %w", err)
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("relgraph/config: %w", err)
	default:
		if err := c.decode(b); err != nil {
			return nil, err
		}
	}
	c.env()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) decode(b []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		var cerr *relgraph.ConfigError
		if errors.As(err, &cerr) {
			return cerr
		}
		return relgraph.NewConfigError("file", nil, err.Error())
	}
	return nil
}

func (c *Config) env() {
	for name, dst := range map[string]*string{
		EnvSchema:   &c.Schema,
		EnvDSN:      &c.Database.DSN,
		EnvLogLevel: &c.Log.Level,
	} {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
}

// Validate checks the option values.
func (c *Config) Validate() error {
	if c.Database.Driver != dialect.SQLite {
		return relgraph.NewConfigError("database.driver", c.Database.Driver, "only sqlite is supported")
	}
	if c.Database.SlowThreshold < 0 {
		return relgraph.NewConfigError("database.slowThreshold", time.Duration(c.Database.SlowThreshold), "must not be negative")
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return relgraph.NewConfigError("log.level", c.Log.Level, "unknown level")
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	_ = l.UnmarshalText([]byte(c.Log.Level))
	return l
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}

// SchemaPath returns the model path resolved against the directory of
// the configuration file.
func (c *Config) SchemaPath() string {
	if c.Schema == "" || filepath.IsAbs(c.Schema) {
		return c.Schema
	}
	return filepath.Join(c.dir, c.Schema)
}

// ReadSchema reads the model file.
func (c *Config) ReadSchema() (string, error) {
	if strings.TrimSpace(c.Schema) == "" {
		return "", relgraph.NewConfigError("schema", nil, "no model file configured")
	}
	b, err := os.ReadFile(c.SchemaPath())
	if err != nil {
		return "", fmt.Errorf("relgraph/config: read model: %w", err)
	}
	return string(b), nil
}

// BuildOptions returns the schema build options of the configuration.
func (c *Config) BuildOptions(l *slog.Logger) []gen.Option {
	opts := []gen.Option{}
	if l != nil {
		opts = append(opts, gen.WithLogger(l))
	}
	if c.StrictNames {
		opts = append(opts, gen.WithStrictNames())
	}
	return opts
}

// ClientOptions returns the client options of the configuration.
func (c *Config) ClientOptions(l *slog.Logger) []client.Option {
	opts := []client.Option{client.WithLogger(l), client.WithBuildOptions(c.BuildOptions(nil)...)}
	if c.Database.SlowThreshold > 0 {
		opts = append(opts, client.WithSlowThreshold(time.Duration(c.Database.SlowThreshold)))
	}
	if c.Migrate {
		opts = append(opts, client.WithMigration())
	}
	if c.Level() <= slog.LevelDebug {
		opts = append(opts, client.Debug())
	}
	return opts
}
