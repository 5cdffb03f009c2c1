package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: PROTOSCOPE_[SECTION]_[KEY] (e.g., PROTOSCOPE_RESOLVER_OVERRIDE_POLICY).
// List values are comma separated.
func ApplyEnvOverrides(cfg *Config) {
	// Resolver
	setEnvString(&cfg.Resolver.OverridePolicy, "PROTOSCOPE_RESOLVER_OVERRIDE_POLICY")
	setEnvInt(&cfg.Resolver.CacheSize, "PROTOSCOPE_RESOLVER_CACHE_SIZE")

	// Sources
	setEnvString(&cfg.Sources.Root, "PROTOSCOPE_SOURCES_ROOT")
	setEnvList(&cfg.Sources.Manifests, "PROTOSCOPE_SOURCES_MANIFESTS")
	setEnvList(&cfg.Sources.PHPPaths, "PROTOSCOPE_SOURCES_PHP_PATHS")
	setEnvList(&cfg.Sources.Exclude, "PROTOSCOPE_SOURCES_EXCLUDE")

	// Database
	setEnvBool(&cfg.DB.Enabled, "PROTOSCOPE_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "PROTOSCOPE_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "PROTOSCOPE_DB_BUSY_TIMEOUT")
	setEnvString(&cfg.DB.Label, "PROTOSCOPE_DB_LABEL")

	// Watch
	setEnvBool(&cfg.Watch.Enabled, "PROTOSCOPE_WATCH_ENABLED")
	setEnvDuration(&cfg.Watch.Debounce, "PROTOSCOPE_WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.MinInterval, "PROTOSCOPE_WATCH_MIN_INTERVAL")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "PROTOSCOPE_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "PROTOSCOPE_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "PROTOSCOPE_OBSERVABILITY_SERVICE_NAME")

	// Log
	setEnvString(&cfg.Log.Format, "PROTOSCOPE_LOG_FORMAT")
	setEnvString(&cfg.Log.Level, "PROTOSCOPE_LOG_LEVEL")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
