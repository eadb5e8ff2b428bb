package handlers

import (
	"net/http"

	"account-portal/internal/middlewares"
)

// LogoutHandler clears the session cookie. It succeeds for anonymous requests too.
func LogoutHandler(ctx *middlewares.AppContext) {
	if ctx.Session != nil {
		ctx.Logger.Info("User logged out", "subject", ctx.Session.SubjectID, "session_id", ctx.Session.ID)
	}

	ctx.Sessions.Revoke(ctx.Cookies())
	ctx.Session = nil

	ctx.Redirect(ctx.Config.Auth.PostLogoutRedirect, http.StatusFound)
}
