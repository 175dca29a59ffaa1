package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OIDCVerifier accepts ID tokens from an external OpenID Connect provider
// and maps them onto local accounts by email address. An account is created
// without a password the first time a verified address is seen.
type OIDCVerifier struct {
	issuer   string
	verifier *oidc.IDTokenVerifier
	users    store.UserStore
}

// NewOIDCVerifier discovers the provider at issuer and verifies tokens issued for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string, users store.UserStore) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	return NewOIDCVerifierWith(issuer, provider.Verifier(&oidc.Config{ClientID: clientID}), users), nil
}

// NewOIDCVerifierWith wraps an already configured go-oidc verifier.
func NewOIDCVerifierWith(issuer string, verifier *oidc.IDTokenVerifier, users store.UserStore) *OIDCVerifier {
	return &OIDCVerifier{issuer: issuer, verifier: verifier, users: users}
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Principal, error) {
	var peek jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &peek); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if peek.Issuer != v.issuer {
		return nil, ErrUnrecognizedToken
	}

	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, fmt.Errorf("%w: email missing or unverified", ErrInvalidToken)
	}

	user, err := v.findOrCreate(ctx, claims)
	if err != nil {
		return nil, err
	}

	return &Principal{ID: user.UserID, Email: user.Email, IsStaff: user.IsStaff}, nil
}

func (v *OIDCVerifier) findOrCreate(ctx context.Context, claims idTokenClaims) (*models.User, error) {
	user, err := v.users.GetByEmail(ctx, claims.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now()
	user = &models.User{
		UserID:        uuid.Must(uuid.NewV7()),
		Email:         models.NormalizeEmail(claims.Email),
		Name:          claims.Name,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := v.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserAlreadyExists) {
			// Lost a race with a concurrent first sign-in.
			return v.users.GetByEmail(ctx, claims.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("user_id", user.UserID.String()).
		Str("issuer", v.issuer).
		Msg("Created account from external identity")

	return user, nil
}
