package parser

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"protoscope/internal/core/errors"
)

// ExcludeMatcher tests paths against glob patterns. A pattern matches
// either the base name or the slash-separated path.
type ExcludeMatcher struct {
	globs []glob.Glob
}

func NewExcludeMatcher(patterns []string) (*ExcludeMatcher, error) {
	m := &ExcludeMatcher{globs: make([]glob.Glob, 0, len(patterns))}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid exclude pattern"), errors.CtxPath, pattern)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

func (m *ExcludeMatcher) Match(path string) bool {
	if m == nil {
		return false
	}
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, g := range m.globs {
		if g.Match(base) || g.Match(slashed) {
			return true
		}
	}
	return false
}

// CollectFiles expands files and directories into the sorted list of
// supported source files, skipping excluded entries.
func (p *Parser) CollectFiles(roots []string, exclude *ExcludeMatcher) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "source path not accessible"), errors.CtxPath, root)
		}
		if !info.IsDir() {
			if !exclude.Match(root) {
				add(root)
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && exclude.Match(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && p.IsSupportedPath(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "walk source tree"), errors.CtxPath, root)
		}
	}

	sort.Strings(files)
	return files, nil
}

// ParseFiles reads and parses paths in parallel. Results keep the order of
// paths; the first read or parse failure cancels the rest.
func (p *Parser) ParseFiles(ctx context.Context, paths []string) ([]*File, error) {
	results := make([]*File, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source"), errors.CtxPath, path)
			}
			file, err := p.ParseFile(path, content)
			if err != nil {
				return err
			}
			results[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
