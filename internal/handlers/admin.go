package handlers

import (
	"errors"
	"net/http"
	"os"

	"community-backend/internal/backup"
	"community-backend/internal/middleware"
	"community-backend/internal/models"
	"community-backend/internal/services"
	"community-backend/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ModerationHandler handles the report queue
type ModerationHandler struct {
	flasher
	moderationService *services.ModerationService
}

// NewModerationHandler creates a new moderation handler
func NewModerationHandler(moderationService *services.ModerationService, sessions session.Store) *ModerationHandler {
	return &ModerationHandler{flasher: flasher{sessions: sessions}, moderationService: moderationService}
}

// ListReports handles GET /api/v1/moderation/reports
func (h *ModerationHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.moderationService.ListOpen(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "list reports")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// Resolve handles POST /api/v1/moderation/reports/{id}/resolve
func (h *ModerationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	reportID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid report id", http.StatusBadRequest)
		return
	}

	if err := h.moderationService.Resolve(r.Context(), reportID, middleware.GetUserID(r.Context())); err != nil {
		h.fail(w, r, err, "resolve report")
		return
	}
	h.ok(w, r, http.StatusOK, "Report resolved.", nil)
}

// RemoveTarget handles POST /api/v1/moderation/reports/{id}/remove-target
func (h *ModerationHandler) RemoveTarget(w http.ResponseWriter, r *http.Request) {
	reportID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid report id", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.moderationService.ResolveAndRemove(r.Context(), reportID, userID); err != nil {
		h.fail(w, r, err, "remove reported content")
		return
	}

	log.Info().
		Int64("moderator_id", userID).
		Int64("report_id", reportID).
		Msg("Reported content removed")
	h.ok(w, r, http.StatusOK, "Content removed and report resolved.", nil)
}

// AdminHandler handles registrations, roles and backups
type AdminHandler struct {
	flasher
	accountService *services.AccountService
	backups        *backup.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(accountService *services.AccountService, backups *backup.Service, sessions session.Store) *AdminHandler {
	return &AdminHandler{
		flasher:        flasher{sessions: sessions},
		accountService: accountService,
		backups:        backups,
	}
}

// Registrations handles GET /api/v1/admin/registrations
func (h *AdminHandler) Registrations(w http.ResponseWriter, r *http.Request) {
	users, err := h.accountService.PendingRegistrations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "list registrations")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"registrations": users})
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

// ChangeRole handles POST /api/v1/admin/users/{id}/role
func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.accountService.ChangeRole(r.Context(), userID, targetID, req.Role); err != nil {
		h.fail(w, r, err, "change role")
		return
	}

	log.Info().
		Int64("admin_id", userID).
		Int64("target_id", targetID).
		Str("role", string(req.Role)).
		Msg("Role changed")
	h.ok(w, r, http.StatusOK, "Role updated.", nil)
}

// Approve handles POST /api/v1/admin/users/{id}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.accountService.ApproveRegistration(r.Context(), middleware.GetUserID(r.Context()), targetID); err != nil {
		h.fail(w, r, err, "approve registration")
		return
	}
	h.ok(w, r, http.StatusOK, "Registration approved.", nil)
}

// Reject handles POST /api/v1/admin/users/{id}/reject
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.accountService.RejectRegistration(r.Context(), middleware.GetUserID(r.Context()), targetID); err != nil {
		h.fail(w, r, err, "reject registration")
		return
	}
	h.ok(w, r, http.StatusOK, "Registration rejected.", nil)
}

// ListBackups handles GET /api/v1/admin/backups
func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.RequireAdmin(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.fail(w, r, err, "list backups")
		return
	}

	list, err := h.backups.List()
	if err != nil {
		h.fail(w, r, err, "list backups")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"backups": list})
}

// CreateBackup handles POST /api/v1/admin/backups
func (h *AdminHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.accountService.RequireAdmin(r.Context(), userID); err != nil {
		h.fail(w, r, err, "create backup")
		return
	}

	info, err := h.backups.Create(r.Context())
	if err != nil {
		h.fail(w, r, err, "create backup")
		return
	}

	log.Info().
		Int64("admin_id", userID).
		Str("name", info.Name).
		Msg("Backup created")
	h.ok(w, r, http.StatusCreated, "Backup created: "+info.Name, info)
}

// DownloadBackup handles GET /api/v1/admin/backups/{name}
func (h *AdminHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.RequireAdmin(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.fail(w, r, err, "download backup")
		return
	}

	name := chi.URLParam(r, "name")
	f, err := h.backups.Open(name)
	if err != nil {
		if errors.Is(err, backup.ErrInvalidName) || errors.Is(err, os.ErrNotExist) {
			respondError(w, "Backup not found", http.StatusNotFound)
			return
		}
		h.fail(w, r, err, "download backup")
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		h.fail(w, r, err, "download backup")
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, fi.ModTime(), f)
}
