package oidc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

var ErrUnknownKey = errors.New("unknown signing key")

// KeyManager holds the ECDSA P-256 keypair used to sign access tokens.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey
	kid        string // base58 sha256 of the PKIX public key
}

// NewKeyManager creates a KeyManager with a fresh keypair. Tokens signed by it
// do not survive a restart.
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return newKeyManager(privateKey)
}

// LoadKeyManager reads the signing key from a PEM file at path. When the file
// does not exist a new key is generated and written there. An empty path
// yields an ephemeral key.
func LoadKeyManager(path string) (*KeyManager, error) {
	if path == "" {
		log.Warn().Msg("No signing key file configured, using an ephemeral key")
		return NewKeyManager()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		km, err := NewKeyManager()
		if err != nil {
			return nil, err
		}
		if err := km.writePEM(path); err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Str("kid", km.kid).Msg("Generated signing key")
		return km, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	privateKey, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key %s: %w", path, err)
	}
	if privateKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key %s is not a P-256 key", path)
	}

	return newKeyManager(privateKey)
}

func newKeyManager(privateKey *ecdsa.PrivateKey) (*KeyManager, error) {
	pubKeyDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	hash := sha256.Sum256(pubKeyDER)

	return &KeyManager{
		privateKey: privateKey,
		kid:        base58.Encode(hash[:]),
	}, nil
}

func (km *KeyManager) writePEM(path string) error {
	der, err := x509.MarshalECPrivateKey(km.privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal signing key: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, block, 0o600); err != nil {
		return fmt.Errorf("failed to write signing key: %w", err)
	}
	return nil
}

// Kid returns the key ID for this keypair.
func (km *KeyManager) Kid() string {
	return km.kid
}

// PublicKey returns the verification key for kid.
func (km *KeyManager) PublicKey(kid string) (*ecdsa.PublicKey, error) {
	if kid != km.kid {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}
	return &km.privateKey.PublicKey, nil
}

// SignJWT signs claims with ES256 and sets the kid header.
func (km *KeyManager) SignJWT(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = km.kid

	tokenString, err := token.SignedString(km.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// JWK returns the public key in JWK format.
func (km *KeyManager) JWK() map[string]any {
	pub := &km.privateKey.PublicKey
	return map[string]any{
		"kty": "EC",
		"use": "sig",
		"crv": "P-256",
		"kid": km.kid,
		"x":   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, 32))),
		"y":   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, 32))),
		"alg": "ES256",
	}
}
