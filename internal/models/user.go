package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an account that can own inquiries.
// Accounts created from an external identity provider have no password.
type User struct {
	UserID        uuid.UUID // UUIDv7
	Email         string    // Stored lower-cased, unique
	Name          string
	PasswordHash  string // bcrypt, empty for external accounts
	IsStaff       bool
	EmailVerified bool

	// Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// HasPassword returns true if the account can sign in with email and password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
