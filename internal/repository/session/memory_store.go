package session

import (
	"context"
	"sync"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// JanitorInterval is how often expired in-memory sessions are swept
const JanitorInterval = 5 * time.Minute

type memoryEntry struct {
	session   domain.AuthSession
	expiresAt time.Time
}

// MemoryStore implements domain.SessionStore in process memory.
// Sessions do not survive restarts and are not shared between instances.
type MemoryStore struct {
	sessions map[string]*memoryEntry
	mu       sync.RWMutex
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a MemoryStore and starts its janitor
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Save stores a copy of the session until ttl elapses
func (s *MemoryStore) Save(ctx context.Context, session *domain.AuthSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = &memoryEntry{
		session:   *session,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Get returns a copy of the session, or ErrSessionNotFound
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[id]
	if !ok || !entry.expiresAt.After(s.now()) {
		return nil, domain.ErrSessionNotFound
	}
	session := entry.session
	return &session, nil
}

// Delete removes the session; deleting a missing session is not an error
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stop stops the janitor goroutine
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.sessions {
		if !entry.expiresAt.After(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Swept expired sessions")
	}
}
