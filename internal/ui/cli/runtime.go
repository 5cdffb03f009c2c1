package cli

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "protoscope/internal/core/app"
	"protoscope/internal/core/config"
	"protoscope/internal/core/errors"
	"protoscope/internal/shared/observability"
	"protoscope/internal/shared/util"
	"protoscope/internal/ui/report"
)

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "protoscope v%s\n", versionString)
		return 0
	}
	if err := validateOptions(opts); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "failed to detect working directory: %v\n", err)
		return 1
	}

	cfg, baseDir, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := applyOverrides(&opts, cfg, cwd); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	configureLogging(stderr, cfg.Log, opts.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	paths, err := config.ResolvePaths(cfg, baseDir)
	if err != nil {
		slog.Error("failed to resolve runtime paths", "error", err)
		return 1
	}

	application, err := coreapp.New(cfg, paths)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer application.Close(context.Background())

	if opts.listSnapshots {
		return listSnapshots(ctx, application, stdout)
	}

	if err := loadHierarchy(ctx, application, opts); err != nil {
		slog.Error("failed to load declarations", "error", err)
		return 1
	}

	if cfg.DB.Enabled && opts.snapshot == "" && !opts.saveSnapshot {
		if _, err := application.SaveSnapshot(ctx, opts.label); err != nil {
			slog.Warn("failed to record snapshot", "error", err)
		}
	}

	if code, ok := runCommands(ctx, application, opts, stdout); !ok {
		return code
	}

	if opts.watch {
		return runWatch(ctx, application, cfg)
	}
	return 0
}

// loadConfig returns the config and the directory relative paths in it are
// anchored at. Without --config, ./protoscope.toml is used when present and
// built-in defaults otherwise.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if strings.TrimSpace(path) != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, filepath.Dir(abs), nil
	}

	candidate := filepath.Join(cwd, config.DefaultFile)
	if _, err := os.Stat(candidate); err == nil {
		cfg, err := config.Load(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, cwd, nil
	}

	cfg := &config.Config{}
	if err := config.Finalize(cfg); err != nil {
		return nil, "", err
	}
	return cfg, cwd, nil
}

// applyOverrides folds flags and positional source paths into cfg.
// Positional .toml/.yaml/.yml files are manifests; everything else is PHP.
func applyOverrides(opts *cliOptions, cfg *config.Config, cwd string) error {
	if opts.policy != "" {
		cfg.Resolver.OverridePolicy = strings.ToLower(strings.TrimSpace(opts.policy))
	}
	if len(opts.args) > 0 {
		cfg.Sources.Manifests = nil
		cfg.Sources.PHPPaths = nil
		for _, arg := range opts.args {
			abs := config.ResolveRelative(cwd, arg)
			switch strings.ToLower(filepath.Ext(abs)) {
			case ".toml", ".yaml", ".yml":
				cfg.Sources.Manifests = append(cfg.Sources.Manifests, abs)
			default:
				cfg.Sources.PHPPaths = append(cfg.Sources.PHPPaths, abs)
			}
		}
	}
	if opts.watch {
		cfg.Watch.Enabled = true
	}
	if cfg.Watch.Enabled {
		opts.watch = true
	}
	return config.Finalize(cfg)
}

func loadHierarchy(ctx context.Context, application *coreapp.App, opts cliOptions) error {
	if opts.snapshot != "" {
		id := opts.snapshot
		if id == "latest" {
			id = ""
		}
		_, err := application.LoadSnapshot(ctx, id)
		return err
	}
	update, err := application.Load(ctx)
	if err != nil {
		return err
	}
	if update.Types == 0 && len(update.Rejected) == 0 {
		slog.Warn("no declarations loaded; pass source paths or configure [sources]")
	}
	return nil
}

// runCommands executes the one-shot commands. ok is false when the process
// should exit with code.
func runCommands(ctx context.Context, application *coreapp.App, opts cliOptions, stdout io.Writer) (int, bool) {
	failed := false

	if opts.resolve != "" {
		typ, method, _ := splitMethodRef(opts.resolve)
		proto, err := application.Resolve(ctx, typ, method)
		if err != nil {
			fmt.Fprintln(stdout, describeError(err))
			failed = true
		} else {
			fmt.Fprintf(stdout, "%s::%s -> %s\n", typ, method, proto)
		}
	}

	if opts.method != "" {
		typ, method, _ := splitMethodRef(opts.method)
		if err := printMethod(ctx, application, typ, method, stdout); err != nil {
			fmt.Fprintln(stdout, describeError(err))
			failed = true
		}
	}

	if opts.methods != "" {
		handles, err := application.Methods(ctx, opts.methods)
		if err != nil {
			fmt.Fprintln(stdout, describeError(err))
			failed = true
		}
		for _, h := range handles {
			fmt.Fprintf(stdout, "%s %s\n", h.Visibility(), h.String())
		}
	}

	if opts.types {
		names, err := application.Types(opts.filter)
		if err != nil {
			fmt.Fprintln(stdout, describeError(err))
			return 1, false
		}
		if err := emit(opts.output, []byte(strings.Join(names, "\n")+"\n"), stdout); err != nil {
			slog.Error("failed to write type list", "error", err)
			return 1, false
		}
	}

	if opts.report {
		rows, err := application.Report(ctx, opts.filter)
		if err != nil {
			fmt.Fprintln(stdout, describeError(err))
			return 1, false
		}
		body, err := renderReport(rows, opts.format)
		if err != nil {
			slog.Error("failed to render report", "error", err)
			return 1, false
		}
		if err := emit(opts.output, body, stdout); err != nil {
			slog.Error("failed to write report", "error", err)
			return 1, false
		}
	}

	if opts.export != "" {
		if err := application.Export(ctx, opts.export); err != nil {
			slog.Error("export failed", "error", err)
			return 1, false
		}
	}

	if opts.saveSnapshot {
		info, err := application.SaveSnapshot(ctx, opts.label)
		if err != nil {
			slog.Error("failed to save snapshot", "error", err)
			return 1, false
		}
		fmt.Fprintf(stdout, "snapshot %s saved (%d types, %d methods)\n", info.ID, info.TypeCount, info.MethodCount)
	}

	if failed {
		return 1, false
	}
	return 0, true
}

func printMethod(ctx context.Context, application *coreapp.App, typ, method string, stdout io.Writer) error {
	h, err := application.GetMethod(ctx, typ, method)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s::%s\n", h.Class(), h.Name())
	fmt.Fprintf(stdout, "  declared in: %s\n", h.DeclaringType())
	if trait := h.FromTrait(); trait != "" {
		fmt.Fprintf(stdout, "  from trait:  %s\n", trait)
	}
	modifiers := []string{h.Visibility().String()}
	if h.IsAbstract() {
		modifiers = append(modifiers, "abstract")
	}
	if h.IsStatic() {
		modifiers = append(modifiers, "static")
	}
	fmt.Fprintf(stdout, "  modifiers:   %s\n", strings.Join(modifiers, " "))

	proto, err := h.GetPrototype()
	switch {
	case err == nil:
		fmt.Fprintf(stdout, "  prototype:   %s\n", proto)
	case errors.IsCode(err, errors.CodeNoPrototype):
		fmt.Fprintln(stdout, "  prototype:   none")
	default:
		return err
	}
	return nil
}

func renderReport(rows []coreapp.ReportRow, format string) ([]byte, error) {
	switch format {
	case "tsv":
		return report.RenderTSV(rows)
	case "json":
		return report.RenderJSON(rows)
	case "markdown":
		return []byte(report.RenderMarkdown(rows)), nil
	default:
		return []byte(report.RenderText(rows)), nil
	}
}

func emit(path string, body []byte, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(body)
		return err
	}
	if err := util.WriteFileWithDirs(path, body, 0o644); err != nil {
		return err
	}
	slog.Info("report written", "path", path)
	return nil
}

func listSnapshots(ctx context.Context, application *coreapp.App, stdout io.Writer) int {
	infos, err := application.ListSnapshots(ctx)
	if err != nil {
		slog.Error("failed to list snapshots", "error", err)
		return 1
	}
	for _, info := range infos {
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\t%d\t%d\n",
			info.ID,
			info.Label,
			info.CreatedAt.Format(time.RFC3339),
			info.OverridePolicy,
			info.TypeCount,
			info.MethodCount,
		)
	}
	return 0
}

// describeError drops the context map from domain errors.
func describeError(err error) string {
	var de *errors.DomainError
	if stderrors.As(err, &de) {
		return fmt.Sprintf("%s: %s", de.Code, de.Message)
	}
	return err.Error()
}

func runWatch(ctx context.Context, application *coreapp.App, cfg *config.Config) int {
	if addr := strings.TrimSpace(cfg.Observability.MetricsAddr); addr != "" {
		server := NewObservabilityServer(addr, coreapp.NewHealthService(application))
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	application.SetUpdateHandler(func(update coreapp.Update) {
		if update.Err != nil {
			return
		}
		slog.Info("hierarchy reloaded", "types", update.Types, "rejected", len(update.Rejected))
	})
	if err := application.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}
	slog.Info("watching sources", "manifests", len(application.Paths.Manifests), "php_paths", len(application.Paths.PHPPaths))

	<-ctx.Done()
	slog.Info("shutting down")
	return 0
}

func configureLogging(output io.Writer, logCfg config.Log, verbose bool) {
	level := slog.LevelInfo
	switch logCfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(output, handlerOpts)
	if logCfg.Format == "json" {
		handler = slog.NewJSONHandler(output, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}
