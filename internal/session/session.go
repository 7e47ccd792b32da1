package session

import (
	"context"
	"errors"
	"strconv"
)

// ErrNotFound is returned for unknown or expired sessions
var ErrNotFound = errors.New("session not found")

const (
	keyUserID = "user_id"
	keyFlash  = "flash"
)

// Store is a server-side session store keyed by an opaque session id.
// Each session holds named string values.
type Store interface {
	// Create starts a session holding the given values and returns its id
	Create(ctx context.Context, values map[string]string) (string, error)
	// Get returns a value; ok is false if the name is unset
	Get(ctx context.Context, id, name string) (value string, ok bool, err error)
	Set(ctx context.Context, id, name, value string) error
	// Pop returns a value and removes it
	Pop(ctx context.Context, id, name string) (value string, ok bool, err error)
	// Clear destroys the session
	Clear(ctx context.Context, id string) error
}

// Start creates a session for an authenticated user
func Start(ctx context.Context, s Store, userID int64) (string, error) {
	return s.Create(ctx, map[string]string{keyUserID: strconv.FormatInt(userID, 10)})
}

// UserID returns the user bound to a session
func UserID(ctx context.Context, s Store, id string) (int64, error) {
	raw, ok, err := s.Get(ctx, id, keyUserID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrNotFound
	}
	return userID, nil
}

// SetFlash stores a one-shot message shown on the next read
func SetFlash(ctx context.Context, s Store, id, message string) error {
	return s.Set(ctx, id, keyFlash, message)
}

// PopFlash returns and clears the pending flash message
func PopFlash(ctx context.Context, s Store, id string) (string, error) {
	msg, _, err := s.Pop(ctx, id, keyFlash)
	return msg, err
}
