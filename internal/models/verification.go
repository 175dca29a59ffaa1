package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailVerification is a one-time token mailed to a newly registered user.
type EmailVerification struct {
	Token      uuid.UUID
	UserID     uuid.UUID
	CreatedAt  time.Time
	VerifiedAt *time.Time
}

// IsVerified returns true once the token has been used.
func (v *EmailVerification) IsVerified() bool {
	return v.VerifiedAt != nil
}
