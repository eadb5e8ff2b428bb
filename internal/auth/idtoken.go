package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"account-portal/internal/models"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityTokenCodec validates a raw id_token and returns its claims. Any failure
// wraps ErrInvalidToken and no partial token is returned.
type IdentityTokenCodec interface {
	Decode(ctx context.Context, raw string) (*models.IdentityToken, error)
}

// profileClaims are the optional claims both codecs read beyond the registered set.
type profileClaims struct {
	Nonce             string          `json:"nonce,omitempty"`
	Name              string          `json:"name,omitempty"`
	PreferredUsername string          `json:"preferred_username,omitempty"`
	Email             string          `json:"email,omitempty"`
	Scope             string          `json:"scope,omitempty"`
	Scp               json.RawMessage `json:"scp,omitempty"`
}

func (p profileClaims) displayName() string {
	return getPreferredValue(p.Name, p.PreferredUsername, p.Email)
}

func (p profileClaims) scopes() []string {
	if p.Scope != "" {
		return strings.Fields(p.Scope)
	}
	if len(p.Scp) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(p.Scp, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(p.Scp, &single); err == nil {
		return strings.Fields(single)
	}
	return nil
}

// OIDCTokenCodec verifies id_tokens against a JWKS through go-oidc.
type OIDCTokenCodec struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCTokenCodec(verifier *oidc.IDTokenVerifier) *OIDCTokenCodec {
	return &OIDCTokenCodec{verifier: verifier}
}

// NewKeySetTokenCodec builds a verifier for issuer and clientID over keySet.
// now may be nil.
func NewKeySetTokenCodec(issuer, clientID string, keySet oidc.KeySet, now func() time.Time) *OIDCTokenCodec {
	return NewOIDCTokenCodec(oidc.NewVerifier(issuer, keySet, &oidc.Config{
		ClientID: clientID,
		Now:      now,
	}))
}

func (c *OIDCTokenCodec) Decode(ctx context.Context, raw string) (*models.IdentityToken, error) {
	idToken, err := c.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	var claims struct {
		profileClaims
		NotBefore *jwt.NumericDate `json:"nbf,omitempty"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %w", ErrInvalidToken, err)
	}

	token := &models.IdentityToken{
		SubjectID:    idToken.Subject,
		Issuer:       idToken.Issuer,
		Audience:     idToken.Audience,
		IssuedAt:     idToken.IssuedAt,
		ExpiresAt:    idToken.Expiry,
		Scopes:       claims.scopes(),
		Nonce:        idToken.Nonce,
		DisplayName:  claims.displayName(),
		Email:        claims.Email,
		RawSignature: rawSignature(raw),
	}
	if claims.NotBefore != nil {
		token.NotBefore = claims.NotBefore.Time
	}

	return token, nil
}

// StaticKeyTokenCodec verifies id_tokens against a fixed key for providers without a JWKS endpoint.
type StaticKeyTokenCodec struct {
	key      interface{}
	methods  []string
	issuer   string
	audience string
	now      func() time.Time
}

type staticClaims struct {
	jwt.RegisteredClaims
	profileClaims
}

// NewHMACTokenCodec verifies HS256/384/512 tokens signed with secret.
func NewHMACTokenCodec(secret []byte, issuer, audience string) (*StaticKeyTokenCodec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("%w: hmac secret must be at least 32 bytes", ErrConfiguration)
	}

	return &StaticKeyTokenCodec{
		key:      secret,
		methods:  []string{"HS256", "HS384", "HS512"},
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}, nil
}

// NewPublicKeyTokenCodec verifies tokens against an RSA, ECDSA or Ed25519 PEM public key.
func NewPublicKeyTokenCodec(pemBytes []byte, issuer, audience string) (*StaticKeyTokenCodec, error) {
	codec := &StaticKeyTokenCodec{
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}

	if key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes); err == nil {
		codec.key = key
		codec.methods = []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}
		return codec, nil
	}

	if key, err := jwt.ParseECPublicKeyFromPEM(pemBytes); err == nil {
		codec.key = key
		codec.methods = []string{"ES256", "ES384", "ES512"}
		return codec, nil
	}

	if key, err := jwt.ParseEdPublicKeyFromPEM(pemBytes); err == nil {
		codec.key = key
		codec.methods = []string{"EdDSA"}
		return codec, nil
	}

	return nil, fmt.Errorf("%w: unsupported verification key", ErrConfiguration)
}

func (c *StaticKeyTokenCodec) Decode(_ context.Context, raw string) (*models.IdentityToken, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(c.methods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	claims := &staticClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	token := &models.IdentityToken{
		SubjectID:    claims.Subject,
		Issuer:       claims.Issuer,
		Audience:     claims.Audience,
		ExpiresAt:    claims.ExpiresAt.Time,
		Scopes:       claims.scopes(),
		Nonce:        claims.Nonce,
		DisplayName:  claims.displayName(),
		Email:        claims.Email,
		RawSignature: rawSignature(raw),
	}
	if claims.IssuedAt != nil {
		token.IssuedAt = claims.IssuedAt.Time
	}
	if claims.NotBefore != nil {
		token.NotBefore = claims.NotBefore.Time
	}

	return token, nil
}

func rawSignature(raw string) string {
	if i := strings.LastIndexByte(raw, '.'); i >= 0 {
		return raw[i+1:]
	}
	return ""
}

// getPreferredValue returns the first non-empty string from the provided values
func getPreferredValue(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
