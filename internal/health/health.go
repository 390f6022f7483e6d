// Package health exposes liveness over HTTP and the standard gRPC health service.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

const checkTimeout = 2 * time.Second

type HealthResponse struct {
	Status        string            `json:"status"`
	Service       string            `json:"service"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Timestamp     int64             `json:"timestamp"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// Checker reports a dependency failure as a non-nil error.
type Checker func(ctx context.Context) error

// Handler serves /health. Any failing check turns the response into a 503.
type Handler struct {
	service string
	started time.Time
	checks  map[string]Checker
	now     func() time.Time
}

func NewHandler(service string, checks map[string]Checker) *Handler {
	now := time.Now
	return &Handler{
		service: service,
		started: now(),
		checks:  checks,
		now:     now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	response := h.Check(ctx)

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// Check runs every registered checker in name order.
func (h *Handler) Check(ctx context.Context) HealthResponse {
	now := h.now()
	response := HealthResponse{
		Status:        "healthy",
		Service:       h.service,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		Timestamp:     now.Unix(),
	}

	if len(h.checks) == 0 {
		return response
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response.Checks = make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			response.Status = "unhealthy"
			response.Checks[name] = err.Error()
			continue
		}
		response.Checks[name] = "ok"
	}
	return response
}
