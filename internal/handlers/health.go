package handlers

import (
	"context"
	"net/http"
	"time"
)

type HealthChecker interface {
	Health(ctx context.Context) error
}

// NamedCheck is one dependency reported by /health and gated by /ready.
type NamedCheck struct {
	Name    string
	Checker HealthChecker
}

type controlCounter interface {
	Len() int
}

type HealthHandler struct {
	checks   []NamedCheck
	controls controlCounter
	timeout  time.Duration
}

func NewHealthHandler(controls controlCounter, checks ...NamedCheck) *HealthHandler {
	return &HealthHandler{
		checks:   checks,
		controls: controls,
		timeout:  5 * time.Second,
	}
}

type HealthResponse struct {
	Status          string            `json:"status"`
	Checks          map[string]string `json:"checks"`
	MountedControls int               `json:"mounted_controls"`
	Timestamp       string            `json:"timestamp"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]string, len(h.checks)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.controls != nil {
		response.MountedControls = h.controls.Len()
	}

	for _, c := range h.checks {
		if err := c.Checker.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Checks[c.Name] = "unhealthy: " + err.Error()
			continue
		}
		response.Checks[c.Name] = "healthy"
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for _, c := range h.checks {
		if err := c.Checker.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
