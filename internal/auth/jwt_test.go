package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codinglab/eduhub/internal/models"
	"github.com/codinglab/eduhub/internal/store/memory"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testIssuer = "http://localhost:8080"

type staticKeys map[string]*ecdsa.PublicKey

func (k staticKeys) PublicKey(kid string) (*ecdsa.PublicKey, error) {
	key, ok := k[kid]
	if !ok {
		return nil, errors.New("unknown kid")
	}
	return key, nil
}

func generateECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *ecdsa.PrivateKey, kid string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestLocalVerifier(t *testing.T) {
	ctx := context.Background()
	key := generateECKey(t)
	verifier := NewLocalVerifier(testIssuer, staticKeys{"k1": &key.PublicKey})
	userID := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		raw := signToken(t, key, "k1", NewAccessClaims(testIssuer, userID, "a@example.com", true, time.Hour))

		p, err := verifier.Verify(ctx, raw)
		require.NoError(t, err)
		require.Equal(t, userID, p.ID)
		require.Equal(t, "a@example.com", p.Email)
		require.True(t, p.IsStaff)
	})

	t.Run("expired token", func(t *testing.T) {
		raw := signToken(t, key, "k1", NewAccessClaims(testIssuer, userID, "a@example.com", false, -time.Hour))

		_, err := verifier.Verify(ctx, raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown kid", func(t *testing.T) {
		raw := signToken(t, key, "k2", NewAccessClaims(testIssuer, userID, "a@example.com", false, time.Hour))

		_, err := verifier.Verify(ctx, raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		raw := signToken(t, generateECKey(t), "k1", NewAccessClaims(testIssuer, userID, "a@example.com", false, time.Hour))

		_, err := verifier.Verify(ctx, raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer is not recognized", func(t *testing.T) {
		raw := signToken(t, key, "k1", NewAccessClaims("https://elsewhere.example.com", userID, "a@example.com", false, time.Hour))

		_, err := verifier.Verify(ctx, raw)
		require.ErrorIs(t, err, ErrUnrecognizedToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestLocalVerifierRevocation(t *testing.T) {
	ctx := context.Background()
	key := generateECKey(t)
	sessions := memory.NewSessionStore()
	verifier := NewLocalVerifier(testIssuer, staticKeys{"k1": &key.PublicKey}).
		WithRevocation(NewSessionRevocationChecker(sessions))
	userID := uuid.New()

	now := time.Now()
	live := &models.Session{SessionID: uuid.New(), UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour), LastUsedAt: now}
	expired := &models.Session{SessionID: uuid.New(), UserID: userID, CreatedAt: now, ExpiresAt: now.Add(-time.Minute), LastUsedAt: now}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, expired))

	tokenFor := func(sessionID uuid.UUID) string {
		return signToken(t, key, "k1", NewAccessClaims(testIssuer, userID, "a@example.com", false, time.Hour).ForSession(sessionID))
	}

	p, err := verifier.Verify(ctx, tokenFor(live.SessionID))
	require.NoError(t, err)
	require.Equal(t, userID, p.ID)

	_, err = verifier.Verify(ctx, tokenFor(expired.SessionID))
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = verifier.Verify(ctx, tokenFor(uuid.New()))
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = verifier.Verify(ctx, signToken(t, key, "k1", NewAccessClaims(testIssuer, userID, "a@example.com", false, time.Hour)))
	require.ErrorIs(t, err, ErrInvalidToken, "tokens without a session are rejected")

	require.NoError(t, sessions.Delete(ctx, live.SessionID))
	_, err = verifier.Verify(ctx, tokenFor(live.SessionID))
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestAuthenticatorMiddleware(t *testing.T) {
	key := generateECKey(t)
	authn := NewAuthenticator(nil, NewLocalVerifier(testIssuer, staticKeys{"k1": &key.PublicKey}))
	userID := uuid.New()

	var seen *Principal
	handler := authn.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   bool
	}{
		{name: "no header is anonymous", header: "", wantStatus: http.StatusNoContent},
		{
			name:       "valid bearer token",
			header:     "Bearer " + signToken(t, key, "k1", NewAccessClaims(testIssuer, userID, "a@example.com", false, time.Hour)),
			wantStatus: http.StatusNoContent,
			wantUser:   true,
		},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{
			name:       "no verifier recognizes issuer",
			header:     "Bearer " + signToken(t, key, "k1", NewAccessClaims("https://other", userID, "", false, time.Hour)),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/inquiries/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantUser {
				require.NotNil(t, seen)
				require.Equal(t, userID, seen.ID)
			} else {
				require.Nil(t, seen)
			}
		})
	}
}

func TestOIDCVerifier(t *testing.T) {
	ctx := context.Background()
	const issuer = "https://accounts.example.com"
	const clientID = "eduhub"

	key := generateECKey(t)
	users := memory.NewUserStore()
	verifier := NewOIDCVerifierWith(issuer, oidc.NewVerifier(issuer,
		&oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		&oidc.Config{ClientID: clientID, SupportedSigningAlgs: []string{oidc.ES256}},
	), users)

	idToken := func(email string, verified bool) string {
		now := time.Now()
		return signToken(t, key, "", jwt.MapClaims{
			"iss":            issuer,
			"aud":            clientID,
			"sub":            "external-123",
			"email":          email,
			"email_verified": verified,
			"name":           "Kim",
			"iat":            now.Unix(),
			"exp":            now.Add(time.Hour).Unix(),
		})
	}

	t.Run("first sign in creates an account", func(t *testing.T) {
		p, err := verifier.Verify(ctx, idToken("Kim@Example.com", true))
		require.NoError(t, err)
		require.False(t, p.IsStaff)

		user, err := users.GetByEmail(ctx, "kim@example.com")
		require.NoError(t, err)
		require.Equal(t, user.UserID, p.ID)
		require.False(t, user.HasPassword())

		again, err := verifier.Verify(ctx, idToken("kim@example.com", true))
		require.NoError(t, err)
		require.Equal(t, p.ID, again.ID)
	})

	t.Run("unverified email is rejected", func(t *testing.T) {
		_, err := verifier.Verify(ctx, idToken("new@example.com", false))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer is not recognized", func(t *testing.T) {
		raw := signToken(t, key, "", jwt.MapClaims{"iss": "https://other", "exp": time.Now().Add(time.Hour).Unix()})
		_, err := verifier.Verify(ctx, raw)
		require.ErrorIs(t, err, ErrUnrecognizedToken)
	})
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	require.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, "correct horse"))
	require.False(t, CheckPassword(hash, "wrong horse"))
	require.False(t, CheckPassword("", "correct horse"))

	_, err = HashPassword(strings.Repeat("a", MaxPasswordBytes+1))
	require.ErrorIs(t, err, ErrPasswordTooLong)

	// 24 three-byte runes fill the limit exactly.
	_, err = HashPassword(strings.Repeat("가", 24))
	require.NoError(t, err)
}
