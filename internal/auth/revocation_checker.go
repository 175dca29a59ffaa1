package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/google/uuid"
)

// ErrTokenRevoked is returned when an access token's refresh session has ended.
var ErrTokenRevoked = errors.New("token revoked")

// RevocationChecker reports whether tokens minted for a session are still honoured.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// SessionLookup is the part of store.SessionStore the checker needs.
type SessionLookup interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)
}

// SessionRevocationChecker treats a token as revoked once the refresh session
// it was minted under is deleted (logout) or expired.
type SessionRevocationChecker struct {
	sessions SessionLookup
}

func NewSessionRevocationChecker(sessions SessionLookup) *SessionRevocationChecker {
	return &SessionRevocationChecker{sessions: sessions}
}

func (c *SessionRevocationChecker) IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	_, err := c.sessions.Get(ctx, sessionID)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrSessionExpired):
		return true, nil
	default:
		return false, fmt.Errorf("failed to check session %s: %w", sessionID, err)
	}
}
