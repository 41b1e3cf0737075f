package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/docdesk/docdesk/internal/domain/document"
	"github.com/docdesk/docdesk/internal/port/inbound"
)

// backendHealthTimeout bounds the backend probe made by each health check.
const backendHealthTimeout = 3 * time.Second

// BackendHealth reports the health of the document backend.
type BackendHealth interface {
	Health(ctx context.Context) (*document.Health, error)
}

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"` // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker verifies the console's dependencies.
type HealthChecker struct {
	backend  BackendHealth
	sessions inbound.SessionReader
	version  string
}

// NewHealthChecker creates a HealthChecker. Pass nil for components that
// aren't available.
func NewHealthChecker(backend BackendHealth, sessions inbound.SessionReader, version string) *HealthChecker {
	return &HealthChecker{
		backend:  backend,
		sessions: sessions,
		version:  version,
	}
}

// Check performs the health checks. The console is unhealthy when the backend
// cannot be reached or reports a failing dependency.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.backend != nil {
		probeCtx, cancel := context.WithTimeout(ctx, backendHealthTimeout)
		report, err := h.backend.Health(probeCtx)
		cancel()
		switch {
		case err != nil:
			checks["backend"] = "unreachable: " + err.Error()
			healthy = false
		case isFailing(report.Services.Database.Status):
			checks["backend"] = "degraded: database " + report.Services.Database.Status
			healthy = false
		default:
			checks["backend"] = "ok"
			if report.Status != "" {
				checks["backend"] = "ok: " + report.Status
			}
		}
	} else {
		checks["backend"] = "not configured"
	}

	if h.sessions != nil {
		checks["session"] = string(h.sessions.Snapshot().State)
	} else {
		checks["session"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}

func isFailing(status string) bool {
	switch strings.ToLower(status) {
	case "error", "down", "unhealthy", "disconnected":
		return true
	}
	return false
}
