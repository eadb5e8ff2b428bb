package models

import "time"

// IdentityToken is the validated view of a provider id_token. It is never persisted.
type IdentityToken struct {
	SubjectID    string
	Issuer       string
	Audience     []string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	NotBefore    time.Time
	Scopes       []string
	Nonce        string
	DisplayName  string
	Email        string
	RawSignature string
}

// ProviderTokens is the token endpoint response of either grant.
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Scope        string
	Expiry       time.Time
}

// RefreshCredential is the single live refresh token for a linked account.
type RefreshCredential struct {
	LinkedAccountID   string    `json:"linked_account_id"`
	RefreshTokenValue string    `json:"refresh_token"`
	RotatedAt         time.Time `json:"rotated_at"`
	AccessToken       string    `json:"access_token,omitempty"`
	AccessExpiresAt   time.Time `json:"access_expires_at,omitempty"`
}

// AccessExpiresWithin reports whether the access token expires before now+window.
func (c *RefreshCredential) AccessExpiresWithin(now time.Time, window time.Duration) bool {
	if c.AccessExpiresAt.IsZero() {
		return true
	}
	return !now.Add(window).Before(c.AccessExpiresAt)
}
