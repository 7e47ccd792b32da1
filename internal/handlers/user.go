package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"community-backend/internal/middleware"
	"community-backend/internal/services"
	"community-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// UserHandler handles registration, sessions and profiles
type UserHandler struct {
	flasher
	userService    *services.UserService
	accountService *services.AccountService
	maxUpload      int64
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, accountService *services.AccountService, maxUpload int64) *UserHandler {
	return &UserHandler{
		flasher:        flasher{sessions: userService.Sessions()},
		userService:    userService,
		accountService: accountService,
		maxUpload:      maxUpload,
	}
}

// Register handles POST /api/v1/users (multipart form)
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.maxUpload) {
		return
	}

	photo, photoName := formFile(r, "photo")
	if photo != nil {
		defer photo.Close()
	}

	in := services.RegisterInput{
		Name:               r.FormValue("name"),
		Email:              r.FormValue("email"),
		Password:           r.FormValue("password"),
		PasswordConfirm:    r.FormValue("password_confirm"),
		Church:             r.FormValue("church"),
		City:               r.FormValue("city"),
		Country:            r.FormValue("country"),
		Phone:              r.FormValue("phone"),
		AgeBracket:         r.FormValue("age_bracket"),
		AttestedLifeReview: formBool(r, "life_review"),
		AttestedBaptism:    formBool(r, "baptized"),
		PhotoName:          photoName,
		Photo:              photo,
	}

	user, err := h.userService.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "register user")
		return
	}

	log.Info().
		Int64("user_id", user.ID).
		Bool("approved", user.Approved).
		Msg("User registered")

	message := "Registration sent. Wait for an admin to approve it."
	if user.Approved {
		message = "Registration complete. You can sign in now."
	}
	h.ok(w, r, http.StatusCreated, message, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/sessions
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err, "sign in")
		return
	}

	log.Info().Int64("user_id", result.User.ID).Msg("User signed in")
	respondJSON(w, http.StatusOK, result)
}

// Logout handles DELETE /api/v1/sessions
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Logout(r.Context(), middleware.GetSessionID(r.Context())); err != nil {
		h.fail(w, r, err, "sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Flash handles GET /api/v1/flash, returning and clearing the pending message
func (h *UserHandler) Flash(w http.ResponseWriter, r *http.Request) {
	msg, err := session.PopFlash(r.Context(), h.sessions, middleware.GetSessionID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "read flash message")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"flash": msg})
}

// Me handles GET /api/v1/profile
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "load profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/v1/profile (multipart form)
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.maxUpload) {
		return
	}

	photo, photoName := formFile(r, "photo")
	if photo != nil {
		defer photo.Close()
	}

	user, err := h.userService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), services.ProfileInput{
		Name:        r.FormValue("name"),
		Church:      r.FormValue("church"),
		City:        r.FormValue("city"),
		Country:     r.FormValue("country"),
		Phone:       r.FormValue("phone"),
		AgeBracket:  r.FormValue("age_bracket"),
		NewPassword: r.FormValue("new_password"),
		PhotoName:   photoName,
		Photo:       photo,
	})
	if err != nil {
		h.fail(w, r, err, "update profile")
		return
	}
	h.ok(w, r, http.StatusOK, "Profile updated.", user)
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

// RegisterPushToken handles POST /api/v1/profile/push-token
func (h *UserHandler) RegisterPushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.userService.RegisterPushToken(r.Context(), userID, req.Token); err != nil {
		h.fail(w, r, err, "register push token")
		return
	}

	log.Info().Int64("user_id", userID).Msg("Push token updated")
	w.WriteHeader(http.StatusNoContent)
}

type deleteProfileRequest struct {
	Confirmation       string `json:"confirmation"`
	ReplacementAdminID int64  `json:"replacement_admin_id"`
}

// DeleteProfile handles POST /api/v1/profile/delete
func (h *UserHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	var req deleteProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if err := h.accountService.DeleteOwnAccount(ctx, userID, req.Confirmation, req.ReplacementAdminID); err != nil {
		h.fail(w, r, err, "delete profile")
		return
	}

	if err := h.userService.Logout(ctx, middleware.GetSessionID(ctx)); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to clear session after deletion")
	}
	w.WriteHeader(http.StatusNoContent)
}

// ViewUser handles GET /api/v1/users/{id}
func (h *UserHandler) ViewUser(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathID(r, "id")
	if !ok {
		respondError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), middleware.GetUserID(r.Context()), targetID)
	if err != nil {
		h.fail(w, r, err, "load profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// Members handles GET /api/v1/members?q=
func (h *UserHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.userService.SearchMembers(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err, "search members")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"members": members})
}

func formBool(r *http.Request, field string) bool {
	switch strings.ToLower(strings.TrimSpace(r.FormValue(field))) {
	case "on", "yes":
		return true
	}
	b, _ := strconv.ParseBool(r.FormValue(field))
	return b
}
