package handlers

import (
	"log/slog"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/websocket"
)

// WebSocketHandler upgrades requests onto the live report feed
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader *gorillaws.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *websocket.Hub, upgrader *gorillaws.Upgrader, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{hub: hub, upgrader: upgrader, logger: logger}
}

// Serve handles GET /ws
func (h *WebSocketHandler) Serve(c echo.Context) error {
	// The upgrader writes its own error response
	if err := h.hub.Serve(h.upgrader, c.Response(), c.Request()); err != nil {
		h.logger.Debug("WebSocket upgrade failed",
			slog.String("remote_ip", c.RealIP()),
			slog.Any("error", err),
		)
	}
	return nil
}
