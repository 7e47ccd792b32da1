package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"community-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// maxClientFrame bounds frames read from clients; they only send pings
const maxClientFrame = 4096

// Authenticator resolves a session token to a user and session
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (int64, string, error)
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub  *services.WSHub
	auth Authenticator
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, auth Authenticator) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, auth: auth}
}

// HandleWebSocket handles GET /ws?token=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, _, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxClientFrame)

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	log.Info().Int64("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Int64("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Debug().Err(err).Int64("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(userID, "Invalid message format")
			continue
		}
		h.handleMessage(userID, msg)
	}

	log.Info().Int64("user_id", userID).Msg("WebSocket connection closed")
}

// handleMessage answers client frames. Everything else flows server to client.
func (h *WebSocketHandler) handleMessage(userID int64, msg services.WSMessage) {
	switch msg.Type {
	case "ping":
		if err := h.hub.SendToUser(userID, services.WSMessage{Type: services.WSPong}); err != nil {
			log.Debug().Err(err).Int64("user_id", userID).Msg("Failed to send pong")
		}
	default:
		h.sendError(userID, "Unknown message type")
	}
}

func (h *WebSocketHandler) sendError(userID int64, message string) {
	msg := services.WSMessage{Type: services.WSError, Message: message}
	if err := h.hub.SendToUser(userID, msg); err != nil {
		log.Debug().Err(err).Int64("user_id", userID).Msg("Failed to send error message")
	}
}
