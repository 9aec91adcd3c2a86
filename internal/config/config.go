// Package config loads process configuration from the environment and
// builds the logger the rest of the program uses.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-provided configuration. CLI flags override it.
type Config struct {
	LogLevel  string `env:"RECS_LOG_LEVEL" envDefault:"warn"`
	LogFormat string `env:"RECS_LOG_FORMAT" envDefault:"text"`

	// DB is the default change log path for commands that record or replay.
	DB string `env:"RECS_DB"`

	// Schemas is the default CUE schema directory.
	Schemas string `env:"RECS_SCHEMAS"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	if err := checkFormat(cfg.LogFormat); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseLevel maps debug, info, warn (or warning) and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}

func checkFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", format)
	}
}

// Logger builds a logger writing to w in the configured format. With
// verbose set the level is lowered to debug.
func (c Config) Logger(w io.Writer, verbose bool) (*slog.Logger, error) {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	switch c.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, checkFormat(c.LogFormat)
	}
}
