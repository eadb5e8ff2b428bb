package handlers

import (
	"net/http"
	"time"

	"account-portal/internal/middlewares"
)

type AuthStatusResponse struct {
	Authenticated bool         `json:"authenticated"`
	Session       *SessionView `json:"session,omitempty"`
}

// SessionView is the part of a session shown to the browser.
type SessionView struct {
	Subject     string    `json:"sub"`
	Issuer      string    `json:"iss"`
	DisplayName string    `json:"display_name,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	Linked      bool      `json:"linked"`
}

func AuthStatusHandler(ctx *middlewares.AppContext) {
	session := ctx.Session
	if session == nil {
		ctx.WriteJSON(http.StatusUnauthorized, AuthStatusResponse{Authenticated: false})
		return
	}

	ctx.WriteJSON(http.StatusOK, AuthStatusResponse{
		Authenticated: true,
		Session: &SessionView{
			Subject:     session.SubjectID,
			Issuer:      session.Issuer,
			DisplayName: session.DisplayName,
			ExpiresAt:   session.ExpiresAt,
			Linked:      session.HasLinkedAccount(),
		},
	})
}
