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

	snapshot := s.app.Status()
	compiled := 0
	pending := 0
	for _, sc := range snapshot.Scopes {
		if sc.Compiled {
			compiled++
		}
		if !sc.ClasspathResolved {
			pending++
		}
	}
	status.Components["scopes"] = fmt.Sprintf("ok (%d total, %d compiled, %d awaiting classpath)",
		len(snapshot.Scopes), compiled, pending)

	if s.app.activeWatcher != nil {
		status.Components["watcher"] = "ok"
	} else {
		status.Status = "degraded"
		status.Components["watcher"] = "not running"
	}

	status.Components["scan_cache"] = fmt.Sprintf("ok (%d entries)", s.app.scanCache.Size())

	return status
}
