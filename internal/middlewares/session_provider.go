package middlewares

import (
	"account-portal/internal/auth"
	"account-portal/internal/models"
)

//go:generate mockgen -source=session_provider.go -destination=../mocks/session.go -package=mocks

// SessionProvider reads and writes the session cookie through a cookie store.
type SessionProvider interface {
	Name() string
	Load(store auth.CookieStore) (*models.Session, bool)
	Write(store auth.CookieStore, session *models.Session) error
	Revoke(store auth.CookieStore)
}
