package middlewares

import (
	"context"

	"account-portal/internal/auth"
	"account-portal/internal/models"
)

//go:generate mockgen -source=login_flow.go -destination=../mocks/login_flow.go -package=mocks

type LoginFlow interface {
	StartLogin(ctx context.Context, returnTo string) (*auth.Redirect, error)
	CompleteLogin(ctx context.Context, code, state string) (*auth.LoginResult, error)
	StartLink(ctx context.Context, session *models.Session) (*auth.Redirect, error)
	CompleteLink(ctx context.Context, session *models.Session, code, state string) (*auth.LoginResult, error)
	LinkEnabled() bool
}

// CredentialRotator replaces or forgets the stored refresh credential of a linked account.
type CredentialRotator interface {
	Rotate(ctx context.Context, linkedAccountID string) (*models.RefreshCredential, error)
	Unlink(ctx context.Context, linkedAccountID string) error
}
