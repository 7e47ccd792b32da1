package handlers

import (
	"net/http"

	"community-backend/internal/middleware"
	"community-backend/internal/services"
	"community-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// PhotoHandler handles gallery photo posts
type PhotoHandler struct {
	flasher
	photoService *services.PhotoService
	maxUpload    int64
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService, sessions session.Store, maxUpload int64) *PhotoHandler {
	return &PhotoHandler{
		flasher:      flasher{sessions: sessions},
		photoService: photoService,
		maxUpload:    maxUpload,
	}
}

// GetPhotos handles GET /api/v1/photos
func (h *PhotoHandler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.photoService.ListPhotos(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "load photos")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"photos": photos,
		"total":  len(photos),
	})
}

// UploadPhoto handles POST /api/v1/photos (multipart form with "image" and
// optional "caption")
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.maxUpload) {
		return
	}

	image, name := formFile(r, "image")
	if image == nil {
		respondError(w, "Choose an image to publish", http.StatusBadRequest)
		return
	}
	defer image.Close()

	userID := middleware.GetUserID(r.Context())
	photo, err := h.photoService.CreatePhotoPost(r.Context(), userID, r.FormValue("caption"), name, image)
	if err != nil {
		h.fail(w, r, err, "publish photo")
		return
	}

	log.Info().
		Int64("user_id", userID).
		Int64("photo_id", photo.ID).
		Msg("Photo published")
	h.ok(w, r, http.StatusCreated, "Photo published.", photo)
}

// ToggleLike handles POST /api/v1/photos/{id}/like
func (h *PhotoHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	photoID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid photo id", http.StatusBadRequest)
		return
	}

	liked, err := h.photoService.ToggleLike(r.Context(), photoID, middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "like photo")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// AddComment handles POST /api/v1/photos/{id}/comments
func (h *PhotoHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	photoID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid photo id", http.StatusBadRequest)
		return
	}
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.photoService.AddComment(r.Context(), photoID, middleware.GetUserID(r.Context()), req.Content)
	if err != nil {
		h.fail(w, r, err, "add comment")
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// DeletePhoto handles POST /api/v1/photos/{id}/delete
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	photoID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid photo id", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.photoService.DeletePhotoPost(r.Context(), photoID, userID); err != nil {
		h.fail(w, r, err, "delete photo")
		return
	}

	log.Info().
		Int64("user_id", userID).
		Int64("photo_id", photoID).
		Msg("Photo deleted")
	h.ok(w, r, http.StatusOK, "Photo deleted.", nil)
}
