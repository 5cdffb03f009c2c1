package config

import (
	"time"
)

type Config struct {
	Version       int           `toml:"version"`
	Resolver      Resolver      `toml:"resolver"`
	Sources       Sources       `toml:"sources"`
	DB            Database      `toml:"db"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
	Log           Log           `toml:"log"`
}

type Resolver struct {
	// OverridePolicy is "virtual" or "contract".
	OverridePolicy string `toml:"override_policy"`
	// CacheSize bounds the prototype cache; 0 means the default, -1
	// disables caching.
	CacheSize int `toml:"cache_size"`
}

type Sources struct {
	Root      string   `toml:"root"`
	Manifests []string `toml:"manifests"`
	PHPPaths  []string `toml:"php_paths"`
	Exclude   []string `toml:"exclude"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	Label       string        `toml:"label"`
}

type Watch struct {
	Enabled     bool          `toml:"enabled"`
	Debounce    time.Duration `toml:"debounce"`
	MinInterval time.Duration `toml:"min_interval"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

type Log struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalize(cfg)
	return cfg
}
