package handlers

import (
	"net/http"
	"strings"

	"account-portal/internal/config"
	"account-portal/internal/middlewares"
)

func GETLoginHandler(ctx *middlewares.AppContext) {
	redirectTo := ctx.Request.URL.Query().Get("rd")
	if !config.IsLocalPath(redirectTo) || strings.HasPrefix(redirectTo, ctx.Config.Auth.ErrorRedirect) {
		ctx.Logger.Debug("ignoring login return target", "rd", redirectTo)
		redirectTo = ctx.Config.Auth.PostLoginRedirect
	}

	if ctx.Session != nil {
		ctx.Logger.Debug("user already authenticated", "subject", ctx.Session.SubjectID)
		ctx.Redirect(redirectTo, http.StatusFound)
		return
	}

	redirect, err := ctx.Auth.StartLogin(ctx, redirectTo)
	if err != nil {
		ctx.Logger.Error("Failed to start login", "error", err)
		ctx.SetJSONError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	ctx.Logger.Debug("Redirecting to OIDC provider")
	ctx.Redirect(redirect.URL, http.StatusFound)
}
