package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	ws "deskops/internal/websocket"
)

// HealthHandler reports service liveness and basic runtime stats.
type HealthHandler struct {
	hub       *ws.Hub
	startedAt time.Time
	version   string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(hub *ws.Hub, version string) *HealthHandler {
	return &HealthHandler{
		hub:       hub,
		startedAt: time.Now(),
		version:   version,
	}
}

// HealthCheck handles GET /api/health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":    "healthy",
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).String(),
		"websocket": h.hub.Metrics(),
	})
}

// LivenessCheck handles GET /api/health/live.
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "alive"})
}
