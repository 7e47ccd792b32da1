package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memorySession struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. It is used when no Redis
// address is configured, and loses every session on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-process session store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// lookup returns a live session and extends it. Callers hold mu.
func (s *MemoryStore) lookup(id string) (*memorySession, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.After(sess.expiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.expiresAt = now.Add(s.ttl)
	return sess, true
}

func (s *MemoryStore) Create(_ context.Context, values map[string]string) (string, error) {
	id := uuid.New().String()
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &memorySession{values: copied, expiresAt: s.now().Add(s.ttl)}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(id)
	if !ok {
		return "", false, nil
	}
	v, ok := sess.values[name]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, id, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}
	sess.values[name] = value
	return nil
}

func (s *MemoryStore) Pop(_ context.Context, id, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(id)
	if !ok {
		return "", false, nil
	}
	v, ok := sess.values[name]
	delete(sess.values, name)
	return v, ok, nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
