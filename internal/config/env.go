package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides reads ORRERY_* variables. Invalid values are logged and
// the previous value kept.
func (c *Config) applyEnvOverrides(logger *slog.Logger) {
	envString("ORRERY_HTTP_ADDR", &c.HTTP.Addr)
	envString("ORRERY_LOG_LEVEL", &c.Log.Level)

	envBool(logger, "ORRERY_AUTH_ENABLED", &c.Auth.Enabled)
	envString("ORRERY_AUTH_TOKEN", &c.Auth.Token)
	envBool(logger, "ORRERY_AUTH_READ_ONLY_PUBLIC", &c.Auth.ReadOnlyPublic)

	envString("ORRERY_ELEMENTS_PATH", &c.Elements.Path)
	envString("ORRERY_ELEMENTS_FORMAT", &c.Elements.Format)
	envString("ORRERY_ELEMENTS_UNIT", &c.Elements.Unit)
	envString("ORRERY_VELOCITY_PATH", &c.Elements.VelocityPath)
	envString("ORRERY_REFERENCE_PATH", &c.Elements.ReferencePath)
	envBool(logger, "ORRERY_ELEMENTS_WATCH", &c.Elements.Watch)
	envString("ORRERY_ELEMENTS_SOURCE_URL", &c.Elements.SourceURL)
	envDuration(logger, "ORRERY_ELEMENTS_REFRESH_INTERVAL", &c.Elements.RefreshInterval)
	envString("ORRERY_ELEMENTS_CACHE_DIR", &c.Elements.CacheDir)
	envInt(logger, "ORRERY_ELEMENTS_MAX_FILES", &c.Elements.MaxFiles, 1)

	envString("ORRERY_EPOCH", &c.Compute.Epoch)
	envString("ORRERY_SOLVER", &c.Compute.Solver)
	envString("ORRERY_TRANSFORM", &c.Compute.Transform)
	envFloat(logger, "ORRERY_SCALE", &c.Compute.Scale)
	envInt(logger, "ORRERY_WORKERS", &c.Compute.Workers, 1)
	envInt(logger, "ORRERY_MAX_FRAMES", &c.Compute.MaxFrames, 1)

	envInt(logger, "ORRERY_CACHE_HORIZON_DAYS", &c.Cache.HorizonDays, 1)
	envInt(logger, "ORRERY_CACHE_BUFFER_DAYS", &c.Cache.BufferDays, 0)
	envDuration(logger, "ORRERY_CACHE_INTERVAL", &c.Cache.Interval)

	envInt(logger, "ORRERY_STREAM_MAX_CONCURRENT", &c.Stream.MaxConcurrentPerIP, 1)
	envDuration(logger, "ORRERY_STREAM_KEEPALIVE_INTERVAL", &c.Stream.KeepaliveInterval)
	envDuration(logger, "ORRERY_STREAM_FRAME_INTERVAL", &c.Stream.FrameInterval)
	if v := os.Getenv("ORRERY_STREAM_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Stream.AllowedOrigins = origins
	}

	envBool(logger, "ORRERY_RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	envFloat(logger, "ORRERY_RATE_LIMIT_RPS", &c.RateLimit.RPS)
	envInt(logger, "ORRERY_RATE_LIMIT_BURST", &c.RateLimit.Burst, 1)
	envBool(logger, "ORRERY_TRUST_PROXY", &c.RateLimit.TrustProxy)

	envBool(logger, "ORRERY_TRACING_ENABLED", &c.Tracing.Enabled)
	envString("ORRERY_TRACING_EXPORTER", &c.Tracing.Exporter)
	envString("ORRERY_TRACING_ENDPOINT", &c.Tracing.Endpoint)
	envString("ORRERY_TRACING_SERVICE_NAME", &c.Tracing.ServiceName)
	envFloat(logger, "ORRERY_TRACING_SAMPLE_RATIO", &c.Tracing.SampleRatio)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func envBool(logger *slog.Logger, key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid boolean in environment, keeping current value", "key", key, "value", v, "current", *dst)
		return
	}
	*dst = b
}

func envInt(logger *slog.Logger, key string, dst *int, min int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		logger.Warn("invalid integer in environment, keeping current value", "key", key, "value", v, "current", *dst)
		return
	}
	*dst = n
}

func envFloat(logger *slog.Logger, key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		logger.Warn("invalid number in environment, keeping current value", "key", key, "value", v, "current", *dst)
		return
	}
	*dst = f
}

// envDuration accepts Go durations ("90s") or plain seconds ("90").
func envDuration(logger *slog.Logger, key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		*dst = time.Duration(n) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		logger.Warn("invalid duration in environment, keeping current value", "key", key, "value", v, "current", dst.String())
		return
	}
	*dst = d
}
