package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"protoscope/internal/core/errors"
)

const (
	DefaultFile        = "protoscope.toml"
	DefaultCacheSize   = 1024
	DefaultDBPath      = "protoscope.db"
	DefaultServiceName = "protoscope"
)

// Load reads path, applies defaults and PROTOSCOPE_* environment overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read config"), errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}

	if err := Finalize(&cfg); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return &cfg, nil
}

// Finalize runs the defaults, env override, normalize and validate chain
// on a decoded or hand-built config.
func Finalize(cfg *Config) error {
	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)
	normalize(cfg)

	for _, validate := range []func(*Config) error{
		validateVersion,
		validateResolver,
		validateDatabase,
		validateWatch,
		validateLog,
	} {
		if err := validate(cfg); err != nil {
			return errors.Wrap(err, errors.CodeValidationError, "invalid config")
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Resolver.OverridePolicy) == "" {
		cfg.Resolver.OverridePolicy = "virtual"
	}
	if cfg.Resolver.CacheSize == 0 {
		cfg.Resolver.CacheSize = DefaultCacheSize
	}

	if strings.TrimSpace(cfg.Sources.Root) == "" {
		cfg.Sources.Root = "."
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = DefaultDBPath
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 2 * time.Second
	}
	if strings.TrimSpace(cfg.DB.Label) == "" {
		cfg.DB.Label = "default"
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MinInterval <= 0 {
		cfg.Watch.MinInterval = 2 * time.Second
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = DefaultServiceName
	}

	if strings.TrimSpace(cfg.Log.Format) == "" {
		cfg.Log.Format = "text"
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
}

func normalize(cfg *Config) {
	cfg.Resolver.OverridePolicy = strings.ToLower(strings.TrimSpace(cfg.Resolver.OverridePolicy))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Sources.Manifests = compact(cfg.Sources.Manifests)
	cfg.Sources.PHPPaths = compact(cfg.Sources.PHPPaths)
	cfg.Sources.Exclude = compact(cfg.Sources.Exclude)
	cfg.Observability.MetricsAddr = strings.TrimSpace(cfg.Observability.MetricsAddr)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
}

// compact trims entries and drops blanks and duplicates, keeping order.
func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
