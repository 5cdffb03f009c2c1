package app

import (
	"context"
	stderrors "errors"
	"runtime"
	"sort"
	"strings"
	"time"

	"protoscope/internal/core/errors"
	"protoscope/internal/engine/hierarchy"
	"protoscope/internal/engine/resolver"
	"protoscope/internal/reflection"
	"protoscope/internal/shared/observability"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"
)

// ReportRow is one method of one type with its prototype outcome. Code is
// empty when a prototype was found.
type ReportRow struct {
	Type      string `json:"type"`
	Method    string `json:"method"`
	Declaring string `json:"declaring"`
	Prototype string `json:"prototype,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Resolve answers which ancestor declaration typeName::method implements
// or overrides.
func (a *App) Resolve(ctx context.Context, typeName, method string) (resolver.Prototype, error) {
	_, span := startSpan(ctx, "app.App.Resolve", typeName, method)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return resolver.Prototype{}, err
	}

	start := time.Now()
	proto, err := a.Current().Reflector.Resolver().ResolvePrototype(typeName, method)
	observability.ResolutionDuration.Observe(time.Since(start).Seconds())
	observability.ResolutionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil {
		span.RecordError(err)
		return resolver.Prototype{}, err
	}
	return proto, nil
}

func (a *App) GetMethod(ctx context.Context, typeName, method string) (*reflection.MethodHandle, error) {
	_, span := startSpan(ctx, "app.App.GetMethod", typeName, method)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.Current().Reflector.GetMethod(typeName, method)
}

func (a *App) HasMethod(typeName, method string) bool {
	return a.Current().Reflector.HasMethod(typeName, method)
}

// Methods lists the methods visible on typeName in linearization order.
func (a *App) Methods(ctx context.Context, typeName string) ([]*reflection.MethodHandle, error) {
	_, span := startSpan(ctx, "app.App.Methods", typeName, "")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.Current().Reflector.Methods(typeName)
}

// Types returns the declared type names matching filter, sorted
// case-insensitively. An empty filter matches everything.
func (a *App) Types(filter string) ([]string, error) {
	types, err := a.filterTypes(a.Current().Store(), filter)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.Name())
	}
	return names, nil
}

func (a *App) filterTypes(store *hierarchy.Store, filter string) ([]*hierarchy.DeclaredType, error) {
	var match glob.Glob
	if strings.TrimSpace(filter) != "" {
		g, err := glob.Compile(hierarchy.Key(filter))
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid type filter"), "filter", filter)
		}
		match = g
	}

	out := make([]*hierarchy.DeclaredType, 0, store.Len())
	for _, t := range store.Types() {
		if match != nil && !match.Match(t.Key()) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Report resolves every method of every type matching filter. Rows are
// grouped by type in sorted order and by method in linearization order.
func (a *App) Report(ctx context.Context, filter string) ([]ReportRow, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.App.Report")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("report").Observe(time.Since(start).Seconds())
	}()

	state := a.Current()
	types, err := a.filterTypes(state.Store(), filter)
	if err != nil {
		return nil, err
	}

	perType := make([][]ReportRow, len(types))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, t := range types {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := reportType(state.Reflector, t.Name())
			if err != nil {
				return err
			}
			perType[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var rows []ReportRow
	for _, chunk := range perType {
		rows = append(rows, chunk...)
	}
	return rows, nil
}

func reportType(r *reflection.Reflector, typeName string) ([]ReportRow, error) {
	handles, err := r.Methods(typeName)
	if err != nil {
		return nil, err
	}
	rows := make([]ReportRow, 0, len(handles))
	for _, h := range handles {
		row := ReportRow{Type: typeName, Method: h.Name(), Declaring: h.String()}
		proto, err := r.Resolver().ResolvePrototype(typeName, h.Name())
		observability.ResolutionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		switch {
		case err == nil:
			row.Prototype = proto.String()
		case errors.IsCode(err, errors.CodeNoPrototype):
			row.Code = string(errors.CodeNoPrototype)
			row.Message = messageOf(err)
		default:
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

func messageOf(err error) string {
	var de *errors.DomainError
	if stderrors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
