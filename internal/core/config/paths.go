package config

import (
	"path/filepath"
	"strings"

	"protoscope/internal/core/errors"
)

type ResolvedPaths struct {
	Root      string
	Manifests []string
	PHPPaths  []string
	DBPath    string
}

// ResolvePaths anchors sources.root at baseDir (normally the directory of
// the config file) and every other relative path at sources.root.
func ResolvePaths(cfg *Config, baseDir string) (ResolvedPaths, error) {
	if strings.TrimSpace(baseDir) == "" {
		return ResolvedPaths{}, errors.New(errors.CodeValidationError, "base directory must not be empty")
	}

	root := ResolveRelative(baseDir, cfg.Sources.Root)
	resolved := ResolvedPaths{
		Root:   root,
		DBPath: ResolveRelative(root, cfg.DB.Path),
	}
	for _, path := range cfg.Sources.Manifests {
		resolved.Manifests = append(resolved.Manifests, ResolveRelative(root, path))
	}
	for _, path := range cfg.Sources.PHPPaths {
		resolved.PHPPaths = append(resolved.PHPPaths, ResolveRelative(root, path))
	}
	return resolved, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
