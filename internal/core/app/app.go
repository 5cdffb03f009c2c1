package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"protoscope/internal/core/config"
	"protoscope/internal/core/errors"
	"protoscope/internal/core/watcher"
	"protoscope/internal/data/declstore"
	"protoscope/internal/data/manifest"
	"protoscope/internal/engine/hierarchy"
	"protoscope/internal/engine/parser"
	"protoscope/internal/engine/resolver"
	"protoscope/internal/reflection"
	"protoscope/internal/shared/observability"
	"protoscope/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Update describes one successful or failed (re)load.
type Update struct {
	Origin   string
	Types    int
	Edges    int
	Files    int
	Rejected []error
	Err      error
}

// State is an immutable view of one loaded hierarchy. Queries read the
// current State without locking; reloads publish a new one.
type State struct {
	Reflector *reflection.Reflector
	Origin    string
	Files     int
	Rejected  []error
	LoadedAt  time.Time
}

func (s *State) Store() *hierarchy.Store { return s.Reflector.Store() }

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths
	Parser *parser.Parser

	policy  resolver.Policy
	exclude *parser.ExcludeMatcher
	state   atomic.Pointer[State]
	reloads *util.Limiter

	storeMu sync.Mutex
	store   *declstore.Store

	updateMu sync.RWMutex
	onUpdate func(Update)

	activeWatcher *watcher.Watcher
	ctx           context.Context
	cancel        context.CancelFunc
}

// New prepares an App. Nothing is loaded until Load or LoadSnapshot runs;
// until then queries see an empty hierarchy.
func New(cfg *config.Config, paths config.ResolvedPaths) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	exclude, err := parser.NewExcludeMatcher(cfg.Sources.Exclude)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:  cfg,
		Paths:   paths,
		Parser:  parser.NewParser(),
		policy:  cfg.OverridePolicy(),
		exclude: exclude,
		reloads: util.NewIntervalLimiter(cfg.Watch.MinInterval),
		ctx:     ctx,
		cancel:  cancel,
	}
	a.install(nil, "empty", 0)
	return a, nil
}

func (a *App) SetUpdateHandler(handler func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(update Update) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(update)
	}
}

// Current returns the active hierarchy.
func (a *App) Current() *State {
	return a.state.Load()
}

func (a *App) Policy() resolver.Policy { return a.policy }

// Load reads every configured manifest and PHP source, rebuilds the
// hierarchy and publishes it. Types that fail validation are dropped and
// reported in Update.Rejected; the rest stay queryable.
func (a *App) Load(ctx context.Context) (Update, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.App.Load")
	defer span.End()

	decls, files, err := a.loadDeclarations(ctx)
	if err != nil {
		span.RecordError(err)
		return Update{Err: err}, err
	}
	update := a.install(decls, "sources", files)
	span.SetAttributes(
		attribute.Int("protoscope.types", update.Types),
		attribute.Int("protoscope.rejected", len(update.Rejected)),
	)
	return update, nil
}

func (a *App) loadDeclarations(ctx context.Context) ([]hierarchy.Declaration, int, error) {
	var decls []hierarchy.Declaration

	if len(a.Paths.Manifests) > 0 {
		start := time.Now()
		loaded, err := manifest.LoadFiles(a.Paths.Manifests)
		if err != nil {
			return nil, 0, errors.AddContext(err, errors.CtxOperation, "load_manifests")
		}
		observability.ParsingDuration.WithLabelValues("manifest").Observe(time.Since(start).Seconds())
		decls = append(decls, loaded...)
	}

	files := len(a.Paths.Manifests)
	if len(a.Paths.PHPPaths) > 0 {
		start := time.Now()
		paths, err := a.Parser.CollectFiles(a.Paths.PHPPaths, a.exclude)
		if err != nil {
			return nil, 0, errors.AddContext(err, errors.CtxOperation, "collect_sources")
		}
		parsed, err := a.Parser.ParseFiles(ctx, paths)
		if err != nil {
			return nil, 0, errors.AddContext(err, errors.CtxOperation, "parse_sources")
		}
		observability.ParsingDuration.WithLabelValues("php").Observe(time.Since(start).Seconds())
		for _, file := range parsed {
			for _, diag := range file.Diagnostics {
				slog.Warn("source diagnostic", "location", diag.Location.String(), "message", diag.Message)
			}
			decls = append(decls, file.Declarations...)
		}
		files += len(parsed)
	}

	return decls, files, nil
}

// install builds a store from decls and publishes it as the current State.
func (a *App) install(decls []hierarchy.Declaration, origin string, files int) Update {
	builder := hierarchy.NewBuilder()
	builder.Add(decls...)
	store, rejected := builder.BuildPartial()
	for _, err := range rejected {
		slog.Warn("declaration rejected", "error", err)
	}

	res := resolver.New(store,
		resolver.WithPolicy(a.policy),
		resolver.WithCacheSize(a.Config.CacheSize()),
	)
	a.state.Store(&State{
		Reflector: reflection.New(res),
		Origin:    origin,
		Files:     files,
		Rejected:  rejected,
		LoadedAt:  time.Now().UTC(),
	})

	observability.DeclaredTypes.Set(float64(store.Len()))
	observability.HierarchyEdges.Set(float64(store.EdgeCount()))
	observability.RejectedTypesTotal.Add(float64(len(rejected)))

	update := Update{
		Origin:   origin,
		Types:    store.Len(),
		Edges:    store.EdgeCount(),
		Files:    files,
		Rejected: rejected,
	}
	if origin != "empty" {
		slog.Info("hierarchy loaded", "origin", origin, "types", update.Types, "rejected", len(rejected), "files", files)
	}
	return update
}

// Close stops the watcher and releases the snapshot database.
func (a *App) Close(_ context.Context) error {
	a.cancel()
	var firstErr error
	if a.activeWatcher != nil {
		if err := a.activeWatcher.Close(); err != nil {
			firstErr = err
		}
		a.activeWatcher = nil
	}

	a.storeMu.Lock()
	defer a.storeMu.Unlock()
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.store = nil
	}
	if firstErr != nil {
		return fmt.Errorf("close app: %w", firstErr)
	}
	return nil
}

func startSpan(ctx context.Context, name, typeName, method string) (context.Context, trace.Span) {
	return observability.Tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("protoscope.type", typeName),
		attribute.String("protoscope.method", method),
	))
}
