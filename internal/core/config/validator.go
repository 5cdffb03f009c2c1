package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"protoscope/internal/engine/resolver"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateResolver(cfg *Config) error {
	if _, err := resolver.ParsePolicy(cfg.Resolver.OverridePolicy); err != nil {
		return fmt.Errorf("resolver.override_policy: %w", err)
	}
	if cfg.Resolver.CacheSize < -1 {
		return fmt.Errorf("resolver.cache_size must be -1 (disabled) or positive, got %d", cfg.Resolver.CacheSize)
	}
	for i, pattern := range cfg.Sources.Exclude {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("sources.exclude[%d] %q: %w", i, pattern, err)
		}
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Enabled && len(cfg.Sources.Manifests) == 0 && len(cfg.Sources.PHPPaths) == 0 {
		return fmt.Errorf("watch.enabled requires sources.manifests or sources.php_paths")
	}
	return nil
}

func validateLog(cfg *Config) error {
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be one of: text, json")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	return nil
}

// OverridePolicy returns the parsed resolver policy. Load has already
// validated it.
func (c *Config) OverridePolicy() resolver.Policy {
	p, _ := resolver.ParsePolicy(c.Resolver.OverridePolicy)
	return p
}

// CacheSize maps the configured value onto resolver.WithCacheSize.
func (c *Config) CacheSize() int {
	if c.Resolver.CacheSize < 0 {
		return 0
	}
	return c.Resolver.CacheSize
}
