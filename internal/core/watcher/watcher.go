// Package watcher reports debounced batches of changed declaration sources.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"protoscope/internal/engine/parser"
	"protoscope/internal/shared/observability"
	"protoscope/internal/shared/util"
)

// DefaultExtensions covers PHP sources and declaration manifests.
var DefaultExtensions = []string{".php", ".hh", ".hack", ".inc", ".toml", ".yaml", ".yml"}

type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	exclude    *parser.ExcludeMatcher
	extFilters map[string]bool
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]struct{}
	pendingMu sync.Mutex
	timer     *time.Timer
}

// NewWatcher compiles the exclude globs and opens an fsnotify handle.
// onChange receives each debounced batch serially.
func NewWatcher(debounce time.Duration, exclude []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	matcher, err := parser.NewExcludeMatcher(exclude)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		exclude:   matcher,
		onChange:  onChange,
		pending:   make(map[string]struct{}),
	}
	w.SetExtensions(DefaultExtensions)
	return w, nil
}

// SetExtensions replaces the file extension allow-list. An empty list admits
// every file.
func (w *Watcher) SetExtensions(extensions []string) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		allowed["."+strings.TrimPrefix(ext, ".")] = true
	}
	w.extFilters = allowed
}

// Watch registers every non-excluded directory below each path. A path that
// names a single file registers its directory instead.
func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			if err := w.fsWatcher.Add(filepath.Dir(path)); err != nil {
				return err
			}
			continue
		}
		if err := w.watchRecursive(path); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

// watchRecursive adds root and every non-excluded directory below it.
func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case !d.IsDir():
			return nil
		case path != root && w.exclude.Match(path):
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.adoptDir(event.Name)
			return
		}
	}
	if event.Op&relevantOps == 0 || w.shouldExcludeFile(event.Name) {
		return
	}
	w.scheduleChange(event.Name)
}

// adoptDir starts watching a directory created after Watch and queues the
// sources it already holds, since their create events may predate the watch.
func (w *Watcher) adoptDir(dir string) {
	if w.exclude.Match(dir) {
		return
	}
	if err := w.watchRecursive(dir); err != nil {
		slog.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && !w.shouldExcludeFile(path) {
			w.scheduleChange(path)
		}
		return nil
	})
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := util.SortedStringKeys(w.pending)
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()
	if len(paths) == 0 {
		return
	}

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	if len(w.extFilters) > 0 && !w.extFilters[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	return w.exclude.Match(path)
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}
