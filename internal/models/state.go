package models

import "time"

type StatePurpose string

const (
	StatePurposeLogin StatePurpose = "login"
	StatePurposeLink  StatePurpose = "link"
)

// StateToken is a single-use anti-forgery value bound to one authorization round trip.
type StateToken struct {
	Value        string       `json:"-"`
	Purpose      StatePurpose `json:"purpose"`
	IssuedAt     time.Time    `json:"issued_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Consumed     bool         `json:"consumed"`
	Nonce        string       `json:"nonce,omitempty"`
	CodeVerifier string       `json:"code_verifier,omitempty"`
	ReturnTo     string       `json:"return_to,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
}

func (s *StateToken) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
