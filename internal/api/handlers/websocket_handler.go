package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/policy-navigator/backend/internal/notify"
	"github.com/policy-navigator/backend/pkg/logger"
)

type WebSocketHandler struct {
	hub *notify.Hub
}

func NewWebSocketHandler(hub *notify.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection streams policy update notifications to the client until it
// disconnects. The read loop exists only to detect the close.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Notification subscriber connected")

	updates := h.hub.Subscribe()
	defer func() {
		h.hub.Unsubscribe(updates)
		c.Close()
		logger.Info("Notification subscriber disconnected")
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := c.WriteJSON(update); err != nil {
				logger.Warn("Failed to push notification", zap.Error(err))
				return
			}
		case <-closed:
			return
		}
	}
}
