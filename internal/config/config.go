// Package config loads skilltrack configuration from defaults, an optional
// config file and SKILLTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abhisek/skilltrack/internal/exam"
	"github.com/abhisek/skilltrack/internal/gaps"
)

// EnvPrefix prefixes every environment override, e.g. SKILLTRACK_LOG_LEVEL.
const EnvPrefix = "SKILLTRACK"

// Config holds all runtime configuration.
type Config struct {
	// DB is the SQLite database path. Empty means the XDG default.
	DB string `mapstructure:"db"`

	Log       LogConfig       `mapstructure:"log"`
	Exam      ExamConfig      `mapstructure:"exam"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// ExamConfig configures exam processing.
type ExamConfig struct {
	// DefaultType applies to payloads without exam_type.
	DefaultType string `mapstructure:"default_type"`

	// GapScope is "career_path" (default) or "updated_only".
	GapScope string `mapstructure:"gap_scope"`

	// MaxAttempts bounds optimistic-concurrency retries per row.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// SyncConfig configures the best-effort outbound sends. An empty URL
// disables that send.
type SyncConfig struct {
	ProfileURL  string        `mapstructure:"profile_url"`
	GapsURL     string        `mapstructure:"gaps_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// TelemetryConfig configures metric export.
type TelemetryConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Exam: ExamConfig{
			DefaultType: string(exam.Baseline),
			GapScope:    "career_path",
			MaxAttempts: 3,
		},
		Sync: SyncConfig{
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
		},
		Telemetry: TelemetryConfig{
			Interval: 30 * time.Second,
		},
	}
}

// Load builds a Config from defaults, the config file and the environment,
// in increasing priority. path names the config file; when empty,
// config.yaml in the skilltrack config directory is used if present.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if dir, err := configDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("db", d.DB)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("exam.default_type", d.Exam.DefaultType)
	v.SetDefault("exam.gap_scope", d.Exam.GapScope)
	v.SetDefault("exam.max_attempts", d.Exam.MaxAttempts)
	v.SetDefault("sync.profile_url", d.Sync.ProfileURL)
	v.SetDefault("sync.gaps_url", d.Sync.GapsURL)
	v.SetDefault("sync.timeout", d.Sync.Timeout)
	v.SetDefault("sync.max_attempts", d.Sync.MaxAttempts)
	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.interval", d.Telemetry.Interval)
}

// configDir returns $XDG_CONFIG_HOME/skilltrack or ~/.config/skilltrack.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "skilltrack"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "skilltrack"), nil
}

// Validate checks values that have a closed set of options.
func (c Config) Validate() error {
	var errs []error
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: %q is invalid (valid values: text, json)", c.Log.Format))
	}
	if _, err := exam.ParseType(c.Exam.DefaultType); err != nil {
		errs = append(errs, fmt.Errorf("exam.default_type: %w", err))
	}
	if _, err := c.GapScope(); err != nil {
		errs = append(errs, err)
	}
	if c.Exam.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("exam.max_attempts: must be at least 1, got %d", c.Exam.MaxAttempts))
	}
	if c.Sync.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("sync.max_attempts: must be at least 1, got %d", c.Sync.MaxAttempts))
	}
	if c.Telemetry.Enabled && c.Telemetry.Interval <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.interval: must be positive when telemetry is enabled"))
	}
	return errors.Join(errs...)
}

// DefaultExamType returns the parsed exam.default_type.
func (c Config) DefaultExamType() (exam.Type, error) {
	return exam.ParseType(c.Exam.DefaultType)
}

// GapScope returns the parsed exam.gap_scope.
func (c Config) GapScope() (gaps.Scope, error) {
	switch c.Exam.GapScope {
	case "", "career_path":
		return gaps.ScopeCareerPath, nil
	case "updated_only":
		return gaps.ScopeUpdatedOnly, nil
	default:
		return 0, fmt.Errorf("exam.gap_scope: %q is invalid (valid values: career_path, updated_only)", c.Exam.GapScope)
	}
}

// NewLogger returns a logger writing to w with the configured level and
// format.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %q is invalid (valid values: debug, info, warn, error)", s)
	}
	return level, nil
}
