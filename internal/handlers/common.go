package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"community-backend/internal/middleware"
	"community-backend/internal/services"
	"community-backend/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const maxJSONBody = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Response is the body of a successful request
type Response struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps a service error kind to an HTTP status
func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindInvalidState, services.KindConflict:
		return http.StatusConflict
	case services.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// flasher records the outcome of each request as a one-shot session message
type flasher struct {
	sessions session.Store
}

func (f flasher) flash(r *http.Request, message string) {
	sid := middleware.GetSessionID(r.Context())
	if sid == "" || message == "" {
		return
	}
	if err := session.SetFlash(r.Context(), f.sessions, sid, message); err != nil {
		log.Warn().Err(err).Msg("Failed to store flash message")
	}
}

// ok sends a success response and stores message as flash
func (f flasher) ok(w http.ResponseWriter, r *http.Request, statusCode int, message string, data any) {
	f.flash(r, message)
	respondJSON(w, statusCode, Response{Message: message, Data: data})
}

// fail sends the response for a failed operation. Service errors carry
// their own message; anything else is logged and reported as internal.
func (f flasher) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		f.flash(r, svcErr.Message)
		respondError(w, svcErr.Message, statusFor(svcErr.Kind))
		return
	}

	log.Error().
		Err(err).
		Int64("user_id", middleware.GetUserID(r.Context())).
		Str("request_id", requestID(r)).
		Msg("Failed to " + action)
	message := "Failed to " + action
	f.flash(r, message)
	respondError(w, message, http.StatusInternalServerError)
}

// pathID parses a numeric URL parameter
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeJSON decodes a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// parseForm parses a multipart or urlencoded form bounded by maxBytes plus
// room for the text fields
func parseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+maxJSONBody)
	err := r.ParseMultipartForm(maxBytes + maxJSONBody)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return false
		}
		respondError(w, "Invalid form", http.StatusBadRequest)
		return false
	}
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			respondError(w, "Invalid form", http.StatusBadRequest)
			return false
		}
	}
	return true
}

// formFile returns an uploaded file, or nil if the field is absent. The
// caller closes the file.
func formFile(r *http.Request, field string) (multipart.File, string) {
	if r.MultipartForm == nil {
		return nil, ""
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, ""
	}
	return file, header.Filename
}

func requestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}
