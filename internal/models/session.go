package models

import "time"

// Session is the authenticated state carried inside the session cookie.
type Session struct {
	ID              string    `json:"id"`
	SubjectID       string    `json:"sub"`
	Issuer          string    `json:"iss"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	DisplayName     string    `json:"display_name,omitempty"`
	LinkedAccountID string    `json:"linked_account_id,omitempty"`
}

// IsExpired reports whether the session is no longer valid at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *Session) HasLinkedAccount() bool {
	return s.LinkedAccountID != ""
}
