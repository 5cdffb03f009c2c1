package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	state := s.app.Current()
	if state == nil || state.Store().Len() == 0 {
		status.Status = "degraded"
		status.Components["hierarchy"] = "empty"
	} else {
		status.Components["hierarchy"] = fmt.Sprintf("ok (%d types, %d rejected, origin %s)", state.Store().Len(), len(state.Rejected), state.Origin)
	}

	s.app.storeMu.Lock()
	storeOpen := s.app.store != nil
	s.app.storeMu.Unlock()
	switch {
	case storeOpen:
		status.Components["snapshot_store"] = "ok"
	case s.app.Config.DB.Enabled:
		status.Components["snapshot_store"] = "not opened"
	}

	if s.app.Parser != nil {
		status.Components["parser"] = "ok"
	} else {
		status.Status = "degraded"
		status.Components["parser"] = "missing"
	}

	return status
}
