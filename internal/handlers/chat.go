package handlers

import (
	"net/http"

	"community-backend/internal/middleware"
	"community-backend/internal/services"
	"community-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// ChatHandler handles conversations and messages
type ChatHandler struct {
	flasher
	conversationService *services.ConversationService
	maxUpload           int64
}

// NewChatHandler creates a new chat handler
func NewChatHandler(conversationService *services.ConversationService, sessions session.Store, maxUpload int64) *ChatHandler {
	return &ChatHandler{
		flasher:             flasher{sessions: sessions},
		conversationService: conversationService,
		maxUpload:           maxUpload,
	}
}

// ListConversations handles GET /api/v1/conversations
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.conversationService.ListConversations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "list conversations")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

// OpenConversation handles GET /api/v1/conversations/{id}. Opening marks
// every message as read.
func (h *ChatHandler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid conversation id", http.StatusBadRequest)
		return
	}

	view, err := h.conversationService.OpenConversation(r.Context(), conversationID, middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "open conversation")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// StartDirect handles POST /api/v1/conversations/direct/{userID}
func (h *ChatHandler) StartDirect(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathID(r, "userID")
	if !ok {
		respondError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	id, err := h.conversationService.StartDirect(r.Context(), middleware.GetUserID(r.Context()), targetID)
	if err != nil {
		h.fail(w, r, err, "start conversation")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"conversation_id": id})
}

type createGroupRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"member_ids"`
}

// CreateGroup handles POST /api/v1/conversations/groups
func (h *ChatHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	id, err := h.conversationService.CreateGroup(r.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		h.fail(w, r, err, "create group")
		return
	}

	log.Info().
		Int64("user_id", userID).
		Int64("conversation_id", id).
		Int("invited", len(req.MemberIDs)).
		Msg("Group conversation created")
	h.ok(w, r, http.StatusCreated, "Group created.", map[string]int64{"conversation_id": id})
}

// PostMessage handles POST /api/v1/conversations/{id}/messages (multipart
// form with optional "text" and "file")
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid conversation id", http.StatusBadRequest)
		return
	}
	if !parseForm(w, r, h.maxUpload) {
		return
	}

	var attachment *services.Attachment
	file, name := formFile(r, "file")
	if file != nil {
		defer file.Close()
		attachment = &services.Attachment{Name: name, Reader: file}
	}

	msg, err := h.conversationService.PostMessage(r.Context(), conversationID, middleware.GetUserID(r.Context()), r.FormValue("text"), attachment)
	if err != nil {
		h.fail(w, r, err, "send message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}
