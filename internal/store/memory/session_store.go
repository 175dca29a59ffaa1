package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
)

// SessionStore implements store.SessionStore using in-memory storage.
// Refresh sessions are lost on restart, which logs every user out.
type SessionStore struct {
	mu sync.RWMutex

	sessions map[uuid.UUID]*models.Session
	byUser   map[uuid.UUID][]uuid.UUID
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*models.Session),
		byUser:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *session
	s.sessions[clone.SessionID] = &clone
	s.byUser[clone.UserID] = append(s.byUser[clone.UserID], clone.SessionID)

	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	switch {
	case !ok:
		return nil, store.ErrSessionNotFound
	case session.IsExpired():
		return nil, store.ErrSessionExpired
	}

	clone := *session
	return &clone, nil
}

func (s *SessionStore) UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrSessionNotFound
	}
	session.LastUsedAt = time.Now()

	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return store.ErrSessionNotFound
	}
	s.removeLocked(sessionID)

	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byUser[userID]
	for _, id := range ids {
		delete(s.sessions, id)
	}
	delete(s.byUser, userID)

	return len(ids), nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, session := range s.sessions {
		if session.IsExpired() {
			s.removeLocked(id)
			count++
		}
	}

	return count, nil
}

// removeLocked drops a session and its index entry. Callers must hold mu.
func (s *SessionStore) removeLocked(sessionID uuid.UUID) {
	session := s.sessions[sessionID]
	delete(s.sessions, sessionID)

	remaining := slices.DeleteFunc(s.byUser[session.UserID], func(id uuid.UUID) bool { return id == sessionID })
	if len(remaining) == 0 {
		delete(s.byUser, session.UserID)
		return
	}
	s.byUser[session.UserID] = remaining
}
