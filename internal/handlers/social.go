package handlers

import (
	"net/http"

	"community-backend/internal/middleware"
	"community-backend/internal/services"
	"community-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// SocialHandler handles connection requests and contacts
type SocialHandler struct {
	flasher
	socialService *services.SocialService
}

// NewSocialHandler creates a new social handler
func NewSocialHandler(socialService *services.SocialService, sessions session.Store) *SocialHandler {
	return &SocialHandler{flasher: flasher{sessions: sessions}, socialService: socialService}
}

// SendRequest handles POST /api/v1/connections/{id}/request
func (h *SocialHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	result, err := h.socialService.SendConnectionRequest(r.Context(), userID, receiverID)
	if err != nil {
		h.fail(w, r, err, "send connection request")
		return
	}

	log.Info().
		Int64("requester_id", userID).
		Int64("receiver_id", receiverID).
		Bool("auto_accepted", result.AutoAccepted).
		Msg("Connection request sent")

	if result.AutoAccepted {
		h.ok(w, r, http.StatusOK, "You are now connected.", result)
		return
	}
	h.ok(w, r, http.StatusCreated, "Connection request sent.", result)
}

// AcceptRequest handles POST /api/v1/connections/requests/{id}/accept
func (h *SocialHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid request id", http.StatusBadRequest)
		return
	}

	req, err := h.socialService.AcceptRequest(r.Context(), requestID, middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "accept connection request")
		return
	}
	h.ok(w, r, http.StatusOK, "Connection accepted.", req)
}

// RejectRequest handles POST /api/v1/connections/requests/{id}/reject
func (h *SocialHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid request id", http.StatusBadRequest)
		return
	}

	req, err := h.socialService.RejectRequest(r.Context(), requestID, middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "reject connection request")
		return
	}
	h.ok(w, r, http.StatusOK, "Connection request rejected.", req)
}

// RemoveConnection handles DELETE /api/v1/connections/{id}
func (h *SocialHandler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	otherID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.socialService.RemoveConnection(r.Context(), middleware.GetUserID(r.Context()), otherID); err != nil {
		h.fail(w, r, err, "remove connection")
		return
	}
	h.ok(w, r, http.StatusOK, "Connection removed.", nil)
}

// ListConnections handles GET /api/v1/connections
func (h *SocialHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.socialService.ListConnections(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "list connections")
		return
	}
	respondJSON(w, http.StatusOK, conns)
}
