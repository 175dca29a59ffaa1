package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Principal, error)
}

// UnauthorizedFunc writes the response for a request carrying a bad token.
type UnauthorizedFunc func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator resolves the caller of each request from its bearer token.
// Verifiers are tried in order until one recognizes the token issuer.
type Authenticator struct {
	verifiers    []TokenVerifier
	unauthorized UnauthorizedFunc
}

// NewAuthenticator creates an authenticator over the given verifiers.
// If unauthorized is nil a plain text 401 is written.
func NewAuthenticator(unauthorized UnauthorizedFunc, verifiers ...TokenVerifier) *Authenticator {
	if unauthorized == nil {
		unauthorized = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	}
	return &Authenticator{verifiers: verifiers, unauthorized: unauthorized}
}

// Verify tries each verifier in turn.
func (a *Authenticator) Verify(ctx context.Context, raw string) (*Principal, error) {
	for _, v := range a.verifiers {
		principal, err := v.Verify(ctx, raw)
		if errors.Is(err, ErrUnrecognizedToken) {
			continue
		}
		return principal, err
	}
	return nil, ErrUnrecognizedToken
}

// Middleware attaches the caller to the request context.
// Requests without an Authorization header continue anonymously; a header
// that is present but fails verification is rejected with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			log.Ctx(r.Context()).Debug().Msg("Malformed Authorization header")
			a.unauthorized(w, r, ErrInvalidToken)
			return
		}

		principal, err := a.Verify(r.Context(), token)
		if err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("Bearer token rejected")
			a.unauthorized(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
