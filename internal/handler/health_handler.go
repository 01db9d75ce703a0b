package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	checks map[string]Pinger
	loaded func() int
}

// NewHealthHandler creates a HealthHandler over named dependency checks.
// loaded, when set, reports the number of live game sessions.
func NewHealthHandler(checks map[string]Pinger, loaded func() int) *HealthHandler {
	return &HealthHandler{checks: checks, loaded: loaded}
}

// Health pings every dependency and answers 503 if any is down.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, c := range h.checks {
		if err := c.PingContext(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	body := map[string]any{"status": "ok", "deps": deps}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.loaded != nil {
		body["sessions"] = h.loaded()
	}
	writeJSON(w, status, body)
}
