package login

import (
	"context"
	"fmt"
	"time"

	"github.com/codinglab/eduhub/internal/auth"
	"github.com/codinglab/eduhub/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Signer signs JWT claims with the service key.
type Signer interface {
	SignJWT(claims jwt.Claims) (string, error)
}

// TokenIssuer mints access tokens for local accounts.
type TokenIssuer struct {
	signer Signer
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(signer Signer, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{signer: signer, issuer: issuer, ttl: ttl}
}

// Access returns a signed access token for user bound to the refresh session.
func (ti *TokenIssuer) Access(user *models.User, sessionID uuid.UUID) (string, error) {
	claims := auth.NewAccessClaims(ti.issuer, user.UserID, user.Email, user.IsStaff, ti.ttl).ForSession(sessionID)
	token, err := ti.signer.SignJWT(claims)
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}
	return token, nil
}

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, user *models.User, link string) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) SendVerification(ctx context.Context, user *models.User, link string) error {
	log.Ctx(ctx).Info().
		Str("user_id", user.UserID.String()).
		Str("to", user.Email).
		Str("link", link).
		Msg("Verification email")
	return nil
}
