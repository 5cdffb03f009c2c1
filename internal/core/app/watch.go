package app

import (
	"log/slog"

	"protoscope/internal/core/errors"
	"protoscope/internal/core/watcher"
	"protoscope/internal/shared/observability"
)

// StartWatcher reloads the hierarchy whenever a configured source changes.
func (a *App) StartWatcher() error {
	roots := append(append([]string(nil), a.Paths.Manifests...), a.Paths.PHPPaths...)
	if len(roots) == 0 {
		return errors.New(errors.CodeValidationError, "watch requires at least one manifest or php path")
	}
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, a.Config.Sources.Exclude, a.HandleChanges)
	if err != nil {
		return err
	}
	if err := w.Watch(roots); err != nil {
		_ = w.Close()
		return err
	}
	a.activeWatcher = w
	return nil
}

// HandleChanges rebuilds from sources. Rebuilds are rate limited by
// watch.min_interval; a failed rebuild keeps the previous hierarchy. With
// db.enabled every successful rebuild is also recorded as a snapshot.
func (a *App) HandleChanges(paths []string) {
	if err := a.reloads.Wait(a.ctx, 1); err != nil {
		return
	}
	slog.Debug("sources changed", "paths", paths)

	update, err := a.Load(a.ctx)
	if err != nil {
		observability.ReloadsTotal.WithLabelValues("error").Inc()
		slog.Error("reload failed, keeping previous hierarchy", "error", err)
		a.emitUpdate(update)
		return
	}
	observability.ReloadsTotal.WithLabelValues("ok").Inc()
	if a.Config.DB.Enabled {
		if _, err := a.SaveSnapshot(a.ctx, ""); err != nil {
			slog.Warn("failed to record snapshot after reload", "error", err)
		}
	}
	a.emitUpdate(update)
}
