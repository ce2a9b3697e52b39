// Package config loads the service configuration: YAML file first, then
// ORRERY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/ShlokMathur/planet-s-trajectory/internal/auth"
	"github.com/ShlokMathur/planet-s-trajectory/internal/cache"
	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/observability"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
	"github.com/ShlokMathur/planet-s-trajectory/internal/stream"
)

// Config is the complete service configuration.
type Config struct {
	HTTP      HTTPConfig                  `yaml:"http"`
	Log       LogConfig                   `yaml:"log"`
	Auth      auth.Config                 `yaml:"auth"`
	Elements  ElementsConfig              `yaml:"elements"`
	Compute   ComputeConfig               `yaml:"compute"`
	Cache     CacheConfig                 `yaml:"cache"`
	Stream    StreamConfig                `yaml:"stream"`
	RateLimit RateLimitConfig             `yaml:"rate_limit"`
	Tracing   observability.TracingConfig `yaml:"tracing"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// ElementsConfig locates the element tables. An empty Path serves the
// built-in table.
type ElementsConfig struct {
	Path          string `yaml:"path"`
	Format        string `yaml:"format"`
	Unit          string `yaml:"unit"`
	VelocityPath  string `yaml:"velocity_path"`
	ReferencePath string `yaml:"reference_path"`
	Watch         bool   `yaml:"watch"` // reload local files when they change

	SourceURL       string        `yaml:"source_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"` // 0 fetches once at startup
	CacheDir        string        `yaml:"cache_dir"`
	MaxFiles        int           `yaml:"max_files"`
}

type ComputeConfig struct {
	Epoch     string  `yaml:"epoch"` // YYYY-MM-DD; empty keeps the table epoch
	Solver    string  `yaml:"solver"`
	Transform string  `yaml:"transform"` // empty picks the solver's default
	Scale     float64 `yaml:"scale"`
	Workers   int     `yaml:"workers"`
	MaxFrames int     `yaml:"max_frames"`
}

type CacheConfig struct {
	HorizonDays int           `yaml:"horizon_days"`
	BufferDays  int           `yaml:"buffer_days"`
	Interval    time.Duration `yaml:"interval"`
}

type StreamConfig struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`
	FrameInterval      time.Duration `yaml:"frame_interval"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled    bool    `yaml:"enabled"`
	RPS        float64 `yaml:"rps"`
	Burst      int     `yaml:"burst"`
	TrustProxy bool    `yaml:"trust_proxy"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Elements: ElementsConfig{
			Unit:     string(elements.UnitAU),
			CacheDir: "/tmp/orrery/elements",
			MaxFiles: 5,
		},
		Compute: ComputeConfig{
			Solver:    string(propagation.EpochBased),
			Scale:     1,
			Workers:   runtime.NumCPU(),
			MaxFrames: propagation.DefaultMaxFrames,
		},
		Cache: CacheConfig{
			HorizonDays: 30,
			BufferDays:  1,
			Interval:    time.Minute,
		},
		Stream: StreamConfig{
			MaxConcurrentPerIP: 10,
			KeepaliveInterval:  30 * time.Second,
			FrameInterval:      time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     20,
			Burst:   40,
		},
		Tracing: observability.TracingConfig{
			ServiceName: "orrery",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
	}
}

// Load reads path (if non-empty and present), applies environment
// overrides and validates the result.
func Load(path string, logger *slog.Logger) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Warn("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides(logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.Token == "" {
		return errors.New("auth token is required when auth is enabled")
	}
	if _, err := c.Computation(); err != nil {
		return fmt.Errorf("compute: %w", err)
	}
	if _, err := elements.ParseUnit(c.Elements.Unit); err != nil {
		return fmt.Errorf("elements: %w", err)
	}
	switch c.Elements.Format {
	case "", elements.FormatCSV, elements.FormatYAML:
	default:
		return fmt.Errorf("elements: unsupported format %q", c.Elements.Format)
	}
	if (c.Elements.VelocityPath == "") != (c.Elements.ReferencePath == "") {
		return errors.New("elements: velocity_path and reference_path must be set together")
	}
	if c.Elements.Watch {
		if c.Elements.Path == "" && c.Elements.VelocityPath == "" {
			return errors.New("elements: watch needs a local path")
		}
		if c.Elements.SourceURL != "" {
			return errors.New("elements: watch cannot be combined with source_url")
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// Computation builds the default computation from the compute section.
func (c *Config) Computation() (propagation.Config, error) {
	cfg := propagation.Config{Scale: c.Compute.Scale}
	if c.Compute.Epoch != "" {
		epoch, err := propagation.ParseDate(c.Compute.Epoch)
		if err != nil {
			return cfg, err
		}
		cfg.Epoch = epoch
	}
	return cfg.Override(c.Compute.Solver, c.Compute.Transform, 0)
}

// PropConfig sizes the propagator.
func (c *Config) PropConfig() propagation.PropConfig {
	return propagation.PropConfig{Workers: c.Compute.Workers, MaxFrames: c.Compute.MaxFrames}
}

// LoadOptions returns the local file options for elements.Load.
func (c *Config) LoadOptions() elements.Options {
	unit, _ := elements.ParseUnit(c.Elements.Unit)
	return elements.Options{
		Path:          c.Elements.Path,
		Format:        strings.ToLower(c.Elements.Format),
		Unit:          unit,
		VelocityPath:  c.Elements.VelocityPath,
		ReferencePath: c.Elements.ReferencePath,
	}
}

// FrameCacheConfig returns the rolling window settings.
func (c *Config) FrameCacheConfig() cache.Config {
	return cache.Config{
		HorizonDays: c.Cache.HorizonDays,
		BufferDays:  c.Cache.BufferDays,
		Interval:    c.Cache.Interval,
	}
}

// StreamHandlerConfig returns the streaming settings.
func (c *Config) StreamHandlerConfig() stream.Config {
	return stream.Config{
		MaxConcurrentPerIP: c.Stream.MaxConcurrentPerIP,
		KeepaliveInterval:  c.Stream.KeepaliveInterval,
		FrameInterval:      c.Stream.FrameInterval,
		MaxDays:            c.Compute.MaxFrames,
		TrustProxy:         c.RateLimit.TrustProxy,
		AllowedOrigins:     c.Stream.AllowedOrigins,
	}
}

// Limit returns the per-IP request rate.
func (c *Config) Limit() rate.Limit {
	return rate.Limit(c.RateLimit.RPS)
}
