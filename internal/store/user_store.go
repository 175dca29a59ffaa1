package store

import (
	"context"
	"errors"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/google/uuid"
)

// Sentinel errors for account storage operations
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrVerificationNotFound = errors.New("verification token not found")
	ErrAlreadyVerified      = errors.New("verification token already used")
)

// UserStore defines the interface for account storage operations.
type UserStore interface {
	// Create creates a new user.
	// Returns ErrUserAlreadyExists if the email is already registered.
	Create(ctx context.Context, user *models.User) error

	// Get retrieves a user by ID.
	// Returns ErrUserNotFound if the user doesn't exist.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email, ignoring case.
	// Returns ErrUserNotFound if no account uses the address.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update updates an existing user.
	// Returns ErrUserNotFound if the user doesn't exist.
	Update(ctx context.Context, user *models.User) error
}

// VerificationStore manages email verification tokens.
type VerificationStore interface {
	Create(ctx context.Context, v *models.EmailVerification) error

	// Get returns ErrVerificationNotFound for unknown tokens.
	Get(ctx context.Context, token uuid.UUID) (*models.EmailVerification, error)

	// MarkVerified consumes a token.
	// Returns ErrAlreadyVerified if it was consumed before.
	MarkVerified(ctx context.Context, token uuid.UUID, at time.Time) error

	// DeleteStale removes unverified tokens created before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int, error)
}
