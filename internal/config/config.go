// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is loaded first when present; real
// environment variables win over it. Command-line flags override both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig is returned when environment variables cannot be parsed.
var ErrParsingConfig = errors.New("failed to parse configuration")

// Config holds every setting the CLI reads from the environment.
type Config struct {
	// DB is the SQLite event log path. Empty keeps events in memory.
	DB string `env:"ROUTINE_DB"`

	LogLevel  string `env:"ROUTINE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ROUTINE_LOG_FORMAT" envDefault:"text"`

	// BaseURL prefixes relative endpoint URLs in operation manifests.
	BaseURL     string        `env:"ROUTINE_BASE_URL"`
	HTTPTimeout time.Duration `env:"ROUTINE_HTTP_TIMEOUT" envDefault:"30s"`

	// MetricsAddr enables the Prometheus endpoint, e.g. ":9090".
	MetricsAddr string `env:"ROUTINE_METRICS_ADDR"`
}

// Load reads .env files (default ".env"), then the process environment.
// Missing .env files are ignored.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// FromMap parses cfg from vars instead of the process environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("ROUTINE_LOG_FORMAT: unknown format %q (want text or json)", c.LogFormat)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("ROUTINE_HTTP_TIMEOUT: must not be negative")
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("ROUTINE_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// JSONLogs reports whether logs should be JSON.
func (c Config) JSONLogs() bool {
	return strings.EqualFold(c.LogFormat, "json")
}
