package auth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for tokens that are malformed, expired or badly signed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnrecognizedToken is returned by a verifier when the token was issued by someone else.
	ErrUnrecognizedToken = errors.New("token issuer not recognized")
)

// AccessClaims are the claims carried by access tokens this service issues.
type AccessClaims struct {
	Email     string `json:"email"`
	Staff     bool   `json:"staff"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// NewAccessClaims builds claims for a user access token valid for ttl.
func NewAccessClaims(issuer string, userID uuid.UUID, email string, staff bool, ttl time.Duration) *AccessClaims {
	now := time.Now()
	return &AccessClaims{
		Email: email,
		Staff: staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
}

// ForSession binds the token to the refresh session it was minted under.
func (c *AccessClaims) ForSession(sessionID uuid.UUID) *AccessClaims {
	c.SessionID = sessionID.String()
	return c
}

// KeySource resolves the public half of a signing key by its kid.
type KeySource interface {
	PublicKey(kid string) (*ecdsa.PublicKey, error)
}

// LocalVerifier verifies ES256 access tokens signed by this service.
type LocalVerifier struct {
	issuer  string
	keys    KeySource
	parser  *jwt.Parser
	revoked RevocationChecker
}

// NewLocalVerifier creates a verifier for tokens issued by issuer.
func NewLocalVerifier(issuer string, keys KeySource) *LocalVerifier {
	return &LocalVerifier{
		issuer: issuer,
		keys:   keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// WithRevocation makes the verifier reject tokens whose session has ended.
// Tokens without a session id are rejected once a checker is set.
func (v *LocalVerifier) WithRevocation(checker RevocationChecker) *LocalVerifier {
	v.revoked = checker
	return v
}

// Verify checks the token signature and claims and returns the caller.
// Tokens from another issuer yield ErrUnrecognizedToken so the next verifier can try.
func (v *LocalVerifier) Verify(ctx context.Context, raw string) (*Principal, error) {
	var unverified AccessClaims
	if _, _, err := v.parser.ParseUnverified(raw, &unverified); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if unverified.Issuer != v.issuer {
		return nil, ErrUnrecognizedToken
	}

	var claims AccessClaims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.keys.PublicKey(kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid subject", ErrInvalidToken)
	}

	if v.revoked != nil {
		sessionID, err := uuid.Parse(claims.SessionID)
		if err != nil {
			return nil, fmt.Errorf("%w: missing session", ErrInvalidToken)
		}
		revoked, err := v.revoked.IsRevoked(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenRevoked)
		}
	}

	return &Principal{ID: id, Email: claims.Email, IsStaff: claims.Staff}, nil
}
