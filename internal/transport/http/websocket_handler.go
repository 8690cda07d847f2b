package http

import (
	"log/slog"
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"deskops/internal/config"
	ws "deskops/internal/websocket"
)

// WebSocketHandler upgrades connections onto the event hub.
type WebSocketHandler struct {
	hub      *ws.Hub
	cfg      config.WebSocketConfig
	upgrader gorilla.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a websocket handler.
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub: hub,
		cfg: cfg,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// The service binds to localhost for a desktop-style UI, so
			// cross-origin checks stay permissive.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With(slog.String("handler", "websocket")),
	}
}

// Serve handles GET /ws.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.ErrorContext(r.Context(), "websocket_upgrade_failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	client := ws.NewClient(h.hub, conn, h.cfg, h.logger)
	client.Start()
}
