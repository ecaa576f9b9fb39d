package handler

import (
	"net/http"

	"github.com/IANDYI/labour-care-service/internal/adapters/middleware"
	"github.com/IANDYI/labour-care-service/internal/adapters/websocket"
	"github.com/IANDYI/labour-care-service/internal/logger"
)

// Authenticator verifies a bearer token
type Authenticator interface {
	Authenticate(tokenString string) (middleware.Identity, error)
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub  *websocket.Hub
	auth Authenticator
	log  *logger.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub, auth Authenticator, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:  hub,
		auth: auth,
		log:  log,
	}
}

// HandleWebSocket handles GET /ws
// Browsers cannot set headers on the upgrade, so ?token= is accepted too
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	entry := h.log.WithComponent("websocket")

	tokenString, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		entry.Warn("WebSocket connection rejected: missing token")
		http.Error(w, "unauthorized: missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.auth.Authenticate(tokenString)
	if err != nil {
		entry.WithError(err).Warn("WebSocket connection rejected: invalid token")
		http.Error(w, "unauthorized: invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Upgrade(w, r, nil)
	if err != nil {
		entry.WithError(err).Error("WebSocket upgrade failed")
		return
	}

	h.hub.Serve(conn, websocket.ClientInfo{
		UserID: identity.UserID,
		Role:   identity.Role,
		Name:   identity.Name,
	})
}
