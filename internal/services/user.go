package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"community-backend/internal/events"
	"community-backend/internal/models"
	"community-backend/internal/repository"
	"community-backend/internal/session"
	"community-backend/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Claims are carried by the bearer token
type Claims struct {
	UserID    int64  `json:"user_id"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// UserService handles registration, authentication and profiles
type UserService struct {
	store      *repository.Store
	files      *storage.Files
	sessions   session.Store
	dispatcher *Dispatcher
	jwtSecret  string
	tokenTTL   time.Duration
}

// NewUserService creates a new user service
func NewUserService(
	store *repository.Store,
	files *storage.Files,
	sessions session.Store,
	dispatcher *Dispatcher,
	jwtSecret string,
	tokenTTL time.Duration,
) *UserService {
	return &UserService{
		store:      store,
		files:      files,
		sessions:   sessions,
		dispatcher: dispatcher,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
	}
}

// Sessions returns the session store
func (s *UserService) Sessions() session.Store {
	return s.sessions
}

// GenerateJWT signs a token binding a user to a server-side session
func (s *UserService) GenerateJWT(userID int64, sessionID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates a token and returns its claims
func (s *UserService) ValidateJWT(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.SessionID == "" || claims.UserID == 0 {
		return nil, fmt.Errorf("invalid token")
	}
	return &claims, nil
}

// Authenticate resolves a bearer token to the acting user. The session must
// still exist, belong to the token's user, and the user must be approved.
func (s *UserService) Authenticate(ctx context.Context, tokenString string) (int64, string, error) {
	claims, err := s.ValidateJWT(tokenString)
	if err != nil {
		return 0, "", err
	}

	userID, err := session.UserID(ctx, s.sessions, claims.SessionID)
	if err != nil {
		return 0, "", err
	}
	if userID != claims.UserID {
		return 0, "", fmt.Errorf("session does not belong to token user")
	}

	ok, err := s.store.Users.ExistsApproved(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	if !ok {
		return 0, "", fmt.Errorf("user %d no longer active", userID)
	}
	return userID, claims.SessionID, nil
}

// RegisterInput holds the registration form
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Church          string
	City            string
	Country         string
	Phone           string
	AgeBracket      string
	// Both attestations are required to join
	AttestedLifeReview bool
	AttestedBaptism    bool
	PhotoName          string
	Photo              io.Reader
}

// Register creates an account. The first user ever becomes an approved
// admin; later users are members awaiting approval.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	password := strings.TrimSpace(in.Password)
	if len([]rune(password)) < minPasswordLength {
		return nil, Validation("Password must have at least 8 characters.")
	}
	if password != strings.TrimSpace(in.PasswordConfirm) {
		return nil, Validation("Password and confirmation do not match.")
	}
	if !in.AttestedLifeReview || !in.AttestedBaptism {
		return nil, Validation("Registration is open only to members who completed the life review and were baptized.")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if name == "" || !strings.Contains(email, "@") {
		return nil, Validation("Name and a valid email are required.")
	}

	photoURL, err := s.files.SaveProfilePhoto(ctx, in.PhotoName, readerOrEmpty(in.Photo))
	if err != nil {
		return nil, fromStorage(err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		s.files.Delete(ctx, photoURL)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Church:       strings.TrimSpace(in.Church),
		City:         strings.TrimSpace(in.City),
		Country:      strings.TrimSpace(in.Country),
		Phone:        NormalizePhone(in.Phone),
		AgeBracket:   strings.TrimSpace(in.AgeBracket),
		PhotoURL:     photoURL,
	}

	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		if err := r.Users.LockRegistration(ctx); err != nil {
			return err
		}
		total, err := r.Users.Count(ctx)
		if err != nil {
			return err
		}
		user.Role = models.RoleMember
		user.Approved = false
		if total == 0 {
			user.Role = models.RoleAdmin
			user.Approved = true
		}
		return r.Users.Create(ctx, user)
	})
	if err != nil {
		s.files.Delete(ctx, photoURL)
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.dispatcher.Publish(ctx, events.Event{
		Type: events.UserRegistered,
		Key:  user.ID,
		Data: map[string]any{"approved": user.Approved, "role": user.Role},
	})
	return user, nil
}

// LoginResult is returned on successful login
type LoginResult struct {
	Token     string       `json:"token"`
	SessionID string       `json:"-"`
	User      *models.User `json:"user"`
}

// Login checks credentials, upgrades legacy password hashes and opens a session
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, rehash := VerifyPassword(password, user.PasswordHash)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.Approved {
		return nil, ErrPendingApproval
	}

	if rehash {
		if hash, err := HashPassword(password); err == nil {
			if err := s.store.Users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
				log.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to upgrade password hash")
			}
		}
	}

	sid, err := session.Start(ctx, s.sessions, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	token, err := s.GenerateJWT(user.ID, sid)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, SessionID: sid, User: user}, nil
}

// Logout destroys a session
func (s *UserService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

// GetUser returns a user by id
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ProfileInput holds editable profile fields. An empty NewPassword keeps the
// current password; an empty PhotoName keeps the current photo.
type ProfileInput struct {
	Name        string
	Church      string
	City        string
	Country     string
	Phone       string
	AgeBracket  string
	NewPassword string
	PhotoName   string
	Photo       io.Reader
}

// UpdateProfile edits the caller's own profile
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	current, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	upd := repository.ProfileUpdate{
		Name:       strings.TrimSpace(in.Name),
		Church:     strings.TrimSpace(in.Church),
		City:       strings.TrimSpace(in.City),
		Country:    strings.TrimSpace(in.Country),
		Phone:      NormalizePhone(in.Phone),
		AgeBracket: strings.TrimSpace(in.AgeBracket),
	}
	if upd.Name == "" {
		return nil, Validation("Name is required.")
	}

	if pw := strings.TrimSpace(in.NewPassword); pw != "" {
		if len([]rune(pw)) < minPasswordLength {
			return nil, Validation("The new password must have at least 8 characters.")
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		upd.PasswordHash = &hash
	}

	if strings.TrimSpace(in.PhotoName) != "" {
		photoURL, err := s.files.SaveProfilePhoto(ctx, in.PhotoName, readerOrEmpty(in.Photo))
		if err != nil {
			return nil, fromStorage(err)
		}
		upd.PhotoURL = &photoURL
	}

	if err := s.store.Users.UpdateProfile(ctx, userID, upd); err != nil {
		if upd.PhotoURL != nil {
			s.files.Delete(ctx, *upd.PhotoURL)
		}
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if upd.PhotoURL != nil && current.PhotoURL != "" {
		s.files.Delete(ctx, current.PhotoURL)
	}
	return s.GetUser(ctx, userID)
}

// Profile is a member page
type Profile struct {
	User         *models.User     `json:"user"`
	Posts        []models.Post    `json:"posts"`
	Stats        models.UserStats `json:"stats"`
	WhatsAppLink string           `json:"whatsapp_link,omitempty"`
	IsSelf       bool             `json:"is_self"`
}

// GetProfile returns target's page. Only the user and their known contacts may see it.
func (s *UserService) GetProfile(ctx context.Context, viewerID, targetID int64) (*Profile, error) {
	target, err := s.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if viewerID != targetID {
		knows, err := s.store.Contacts.Knows(ctx, viewerID, targetID)
		if err != nil {
			return nil, err
		}
		if !knows {
			return nil, ErrProfileHidden
		}
	}

	posts, err := s.store.Posts.ListByUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Users.Stats(ctx, targetID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{User: target, Posts: posts, Stats: stats, IsSelf: viewerID == targetID}
	if !profile.IsSelf {
		viewer, err := s.GetUser(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		profile.WhatsAppLink = WhatsAppLink(target.Phone, viewer.Name)
	}
	return profile, nil
}

// SearchMembers lists approved members matching query, each with a WhatsApp link
func (s *UserService) SearchMembers(ctx context.Context, viewerID int64, query string) ([]models.MemberSummary, error) {
	viewer, err := s.GetUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Users.Search(ctx, strings.ToLower(strings.TrimSpace(query)))
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].ID != viewerID {
			members[i].WhatsAppLink = WhatsAppLink(members[i].Phone, viewer.Name)
		}
	}
	return members, nil
}

// RegisterPushToken stores the device token used for push notifications.
// An empty token unregisters the device.
func (s *UserService) RegisterPushToken(ctx context.Context, userID int64, token string) error {
	token = strings.TrimSpace(token)
	var value *string
	if token != "" {
		value = &token
	}
	return s.store.Users.UpdatePushToken(ctx, userID, value)
}

// NormalizePhone keeps only the digits of a phone number
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WhatsAppLink builds a wa.me deep link with a greeting from senderName.
// Numbers with fewer than 10 digits get no link.
func WhatsAppLink(rawPhone, senderName string) string {
	phone := NormalizePhone(rawPhone)
	if len(phone) < 10 {
		return ""
	}
	message := fmt.Sprintf("Peace! This is %s. Shall we talk on the community network?", senderName)
	return "https://wa.me/" + phone + "?text=" + url.PathEscape(message)
}

func readerOrEmpty(r io.Reader) io.Reader {
	if r == nil {
		return strings.NewReader("")
	}
	return r
}
