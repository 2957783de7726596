// Package config loads simulator settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Upper bound on MaxQubits accepted from configuration: 2^30 amplitudes is
// already 16 GiB.
const hardMaxQubits = 30

// Config represents the complete simulator configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig bounds and seeds the simulation engine.
type EngineConfig struct {
	MaxQubits int `yaml:"max_qubits"`
	MaxShots  int `yaml:"max_shots"`
	// MaxWork caps the estimated amplitude updates of a single run.
	MaxWork int64 `yaml:"max_work"`
	// Seed, when set, makes every run reproducible.
	Seed *int64 `yaml:"seed"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // text or json
	File       string `yaml:"file"`        // log file path (empty for stderr)
	MaxSizeMB  int    `yaml:"max_size_mb"` // rotate the file after this many megabytes
	MaxBackups int    `yaml:"max_backups"` // rotated files to keep
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	TraceStdout bool `yaml:"trace_stdout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			MaxQubits: 24,
			MaxShots:  1_000_000,
			MaxWork:   1 << 34,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("QSIM_MAX_QUBITS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QSIM_MAX_QUBITS: %w", err)
		}
		c.Engine.MaxQubits = n
	}
	if v, ok := lookup("QSIM_MAX_SHOTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QSIM_MAX_SHOTS: %w", err)
		}
		c.Engine.MaxShots = n
	}
	if v, ok := lookup("QSIM_MAX_WORK"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("QSIM_MAX_WORK: %w", err)
		}
		c.Engine.MaxWork = n
	}
	if v, ok := lookup("QSIM_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("QSIM_SEED: %w", err)
		}
		c.Engine.Seed = &n
	}
	if v, ok := lookup("QSIM_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	return nil
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Engine.MaxQubits < 1 || c.Engine.MaxQubits > hardMaxQubits {
		errs = append(errs, fmt.Errorf("engine.max_qubits must be in [1, %d], got %d", hardMaxQubits, c.Engine.MaxQubits))
	}
	if c.Engine.MaxShots < 1 {
		errs = append(errs, fmt.Errorf("engine.max_shots must be at least 1, got %d", c.Engine.MaxShots))
	}
	if c.Engine.MaxWork < 1 {
		errs = append(errs, fmt.Errorf("engine.max_work must be at least 1, got %d", c.Engine.MaxWork))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format))
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB < 1 {
		errs = append(errs, fmt.Errorf("logging.max_size_mb must be at least 1 when logging.file is set, got %d", c.Logging.MaxSizeMB))
	}
	if c.Logging.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("logging.max_backups must not be negative, got %d", c.Logging.MaxBackups))
	}
	return errors.Join(errs...)
}
