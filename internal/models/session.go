package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a refresh session created at login.
// The session ID doubles as the opaque refresh token handed to the client.
type Session struct {
	SessionID uuid.UUID // UUIDv7
	UserID    uuid.UUID

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time

	// Optional audit metadata
	UserAgent string
	IPAddress string
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
