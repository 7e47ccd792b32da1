package handlers

import (
	"net/http"

	"community-backend/internal/middleware"
	"community-backend/internal/models"
	"community-backend/internal/services"
	"community-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// FeedHandler handles text posts, their comments and reports
type FeedHandler struct {
	flasher
	feedService       *services.FeedService
	moderationService *services.ModerationService
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedService *services.FeedService, moderationService *services.ModerationService, sessions session.Store) *FeedHandler {
	return &FeedHandler{
		flasher:           flasher{sessions: sessions},
		feedService:       feedService,
		moderationService: moderationService,
	}
}

type contentRequest struct {
	Content string `json:"content"`
}

type reportRequest struct {
	Reason string `json:"reason"`
}

// Dashboard handles GET /api/v1/dashboard
func (h *FeedHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.feedService.Dashboard(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "load dashboard")
		return
	}
	respondJSON(w, http.StatusOK, dash)
}

// ListPosts handles GET /api/v1/posts
func (h *FeedHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.feedService.ListFeed(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "load feed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// CreatePost handles POST /api/v1/posts
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.feedService.CreatePost(r.Context(), middleware.GetUserID(r.Context()), req.Content)
	if err != nil {
		h.fail(w, r, err, "publish post")
		return
	}
	h.ok(w, r, http.StatusCreated, "Post published.", post)
}

// ToggleLike handles POST /api/v1/posts/{id}/like
func (h *FeedHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid post id", http.StatusBadRequest)
		return
	}

	liked, err := h.feedService.ToggleLike(r.Context(), postID, middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "like post")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// AddComment handles POST /api/v1/posts/{id}/comments
func (h *FeedHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid post id", http.StatusBadRequest)
		return
	}
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.feedService.AddComment(r.Context(), postID, middleware.GetUserID(r.Context()), req.Content)
	if err != nil {
		h.fail(w, r, err, "add comment")
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// DeletePost handles POST /api/v1/posts/{id}/delete
func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid post id", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.feedService.DeletePost(r.Context(), postID, userID); err != nil {
		h.fail(w, r, err, "delete post")
		return
	}

	log.Info().Int64("user_id", userID).Int64("post_id", postID).Msg("Post deleted")
	h.ok(w, r, http.StatusOK, "Post deleted.", nil)
}

// ReportPost handles POST /api/v1/posts/{id}/report
func (h *FeedHandler) ReportPost(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, models.TargetPost)
}

// ReportComment handles POST /api/v1/comments/{id}/report
func (h *FeedHandler) ReportComment(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, models.TargetComment)
}

func (h *FeedHandler) report(w http.ResponseWriter, r *http.Request, kind models.ReportTarget) {
	targetID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid "+string(kind)+" id", http.StatusBadRequest)
		return
	}
	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.moderationService.Report(r.Context(), kind, targetID, middleware.GetUserID(r.Context()), req.Reason)
	if err != nil {
		h.fail(w, r, err, "send report")
		return
	}
	h.ok(w, r, http.StatusCreated, "Report sent to the moderators.", report)
}
