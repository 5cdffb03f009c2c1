package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"protoscope/internal/core/app"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ObservabilityServer exposes Prometheus metrics and the hierarchy health
// report while a watch session runs.
type ObservabilityServer struct {
	addr   string
	health *app.HealthService

	srv *http.Server
	ln  net.Listener
}

func NewObservabilityServer(addr string, health *app.HealthService) *ObservabilityServer {
	return &ObservabilityServer{addr: addr, health: health}
}

func (s *ObservabilityServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.serveHealth)
	return mux
}

// serveHealth answers 503 while the hierarchy is empty or degraded.
func (s *ObservabilityServer) serveHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	code := http.StatusOK
	if report.Status != "up" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		slog.Debug("health response not written", "error", err)
	}
}

// Start binds synchronously so a bad address fails the caller, then
// serves in the background.
func (s *ObservabilityServer) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	slog.Info("observability server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server stopped", "error", err)
		}
	}()
	return nil
}

func (s *ObservabilityServer) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
