package oidc

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RefreshPath is where clients exchange a refresh token for a new access token.
const RefreshPath = "/api/v1/auth/token/refresh/"

// Handler serves the discovery and key documents that let other services
// verify the access tokens this server issues.
type Handler struct {
	keyManager *KeyManager
	issuer     string
}

// NewHandler creates a handler publishing keyManager's key under issuer.
func NewHandler(keyManager *KeyManager, issuer string) *Handler {
	return &Handler{keyManager: keyManager, issuer: issuer}
}

// DiscoveryHandler serves /.well-known/openid-configuration.
func (h *Handler) DiscoveryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		config := map[string]any{
			"issuer":                                h.issuer,
			"jwks_uri":                              h.issuer + "/.well-known/jwks.json",
			"token_endpoint":                        h.issuer + RefreshPath,
			"response_types_supported":              []string{"token"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"ES256"},
			"claims_supported":                      []string{"sub", "email", "staff"},
		}
		writeJSON(w, r, "public, max-age=86400", config)
	}
}

// JWKSHandler serves /.well-known/jwks.json.
func (h *Handler) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Debug().Str("kid", h.keyManager.Kid()).Msg("JWKS request")
		writeJSON(w, r, "public, max-age=3600", map[string]any{
			"keys": []any{h.keyManager.JWK()},
		})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, cacheControl string, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", cacheControl)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode well-known response")
	}
}
