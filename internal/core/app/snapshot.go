package app

import (
	"context"
	"log/slog"
	"strings"

	"protoscope/internal/core/errors"
	"protoscope/internal/data/declstore"
	"protoscope/internal/data/manifest"
	"protoscope/internal/engine/hierarchy"
	"protoscope/internal/shared/observability"
)

// snapshots opens the snapshot database on first use.
func (a *App) snapshots() (*declstore.Store, error) {
	a.storeMu.Lock()
	defer a.storeMu.Unlock()
	if a.store != nil {
		return a.store, nil
	}
	store, err := declstore.Open(a.Paths.DBPath, a.Config.DB.BusyTimeout)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *App) label(label string) string {
	if strings.TrimSpace(label) == "" {
		return a.Config.DB.Label
	}
	return strings.TrimSpace(label)
}

// SaveSnapshot persists the declarations of the current hierarchy under
// label (the configured label when empty).
func (a *App) SaveSnapshot(ctx context.Context, label string) (declstore.Info, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.App.SaveSnapshot")
	defer span.End()

	store, err := a.snapshots()
	if err != nil {
		return declstore.Info{}, err
	}
	decls := a.Current().Store().Declarations()
	info, err := store.SaveSnapshot(ctx, a.label(label), a.policy.String(), decls)
	if err != nil {
		span.RecordError(err)
		return declstore.Info{}, err
	}
	slog.Info("snapshot saved", "id", info.ID, "label", info.Label, "types", info.TypeCount)
	return info, nil
}

// LoadSnapshot installs the snapshot with the given id, or the latest one
// for the configured label when id is empty.
func (a *App) LoadSnapshot(ctx context.Context, id string) (Update, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.App.LoadSnapshot")
	defer span.End()

	store, err := a.snapshots()
	if err != nil {
		return Update{Err: err}, err
	}

	var (
		info  declstore.Info
		decls []hierarchy.Declaration
	)
	if strings.TrimSpace(id) == "" {
		info, decls, err = store.LatestSnapshot(ctx, a.Config.DB.Label)
	} else {
		info, decls, err = store.LoadSnapshot(ctx, strings.TrimSpace(id))
	}
	if err != nil {
		span.RecordError(err)
		return Update{Err: err}, err
	}
	if info.OverridePolicy != "" && info.OverridePolicy != a.policy.String() {
		slog.Warn("snapshot was saved under a different override policy",
			"snapshot_policy", info.OverridePolicy, "active_policy", a.policy.String())
	}
	return a.install(decls, "snapshot:"+info.ID, 0), nil
}

// ListSnapshots returns snapshot metadata, oldest first.
func (a *App) ListSnapshots(ctx context.Context) ([]declstore.Info, error) {
	store, err := a.snapshots()
	if err != nil {
		return nil, err
	}
	return store.ListSnapshots(ctx)
}

// Export writes the current hierarchy as a manifest; the format follows
// the file extension.
func (a *App) Export(ctx context.Context, path string) error {
	_, span := observability.Tracer.Start(ctx, "app.App.Export")
	defer span.End()

	if strings.TrimSpace(path) == "" {
		return errors.New(errors.CodeValidationError, "export path is required")
	}
	if err := manifest.WriteFile(path, a.Current().Store().Declarations()); err != nil {
		span.RecordError(err)
		return err
	}
	slog.Info("manifest exported", "path", path)
	return nil
}
