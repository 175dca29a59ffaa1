package memory

import (
	"context"
	"sync"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
)

// UserStore implements store.UserStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type UserStore struct {
	mu sync.RWMutex

	users        map[uuid.UUID]*models.User // user_id -> User
	usersByEmail map[string]*models.User    // normalized email -> User
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:        make(map[uuid.UUID]*models.User),
		usersByEmail: make(map[string]*models.User),
	}
}

// Create creates a new user in memory.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := models.NormalizeEmail(user.Email)

	if _, exists := s.users[user.UserID]; exists {
		return store.ErrUserAlreadyExists
	}
	if _, exists := s.usersByEmail[email]; exists {
		return store.ErrUserAlreadyExists
	}

	// Clone to avoid external modifications
	clone := *user
	clone.Email = email
	s.users[clone.UserID] = &clone
	s.usersByEmail[email] = &clone

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// GetByEmail retrieves a user by email address.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByEmail[models.NormalizeEmail(email)]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// Update updates an existing user.
func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.users[user.UserID]
	if !exists {
		return store.ErrUserNotFound
	}

	email := models.NormalizeEmail(user.Email)
	if other, taken := s.usersByEmail[email]; taken && other.UserID != user.UserID {
		return store.ErrUserAlreadyExists
	}

	user.UpdatedAt = time.Now()

	// Remove old index
	delete(s.usersByEmail, existing.Email)

	clone := *user
	clone.Email = email
	s.users[clone.UserID] = &clone
	s.usersByEmail[email] = &clone

	return nil
}

// VerificationStore implements store.VerificationStore using in-memory storage.
type VerificationStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*models.EmailVerification
}

// NewVerificationStore creates a new in-memory verification token store.
func NewVerificationStore() *VerificationStore {
	return &VerificationStore{tokens: make(map[uuid.UUID]*models.EmailVerification)}
}

func (s *VerificationStore) Create(ctx context.Context, v *models.EmailVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *v
	s.tokens[v.Token] = &clone
	return nil
}

func (s *VerificationStore) Get(ctx context.Context, token uuid.UUID) (*models.EmailVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.tokens[token]
	if !exists {
		return nil, store.ErrVerificationNotFound
	}
	clone := *v
	return &clone, nil
}

func (s *VerificationStore) MarkVerified(ctx context.Context, token uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.tokens[token]
	if !exists {
		return store.ErrVerificationNotFound
	}
	if v.IsVerified() {
		return store.ErrAlreadyVerified
	}
	v.VerifiedAt = &at
	return nil
}

func (s *VerificationStore) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for token, v := range s.tokens {
		if !v.IsVerified() && v.CreatedAt.Before(cutoff) {
			delete(s.tokens, token)
			count++
		}
	}
	return count, nil
}
