package handlers

import (
	"net/http"

	"account-portal/internal/auth"
	"account-portal/internal/middlewares"
)

// GETCallbackHandler completes the login round trip. Failures never leave a
// session cookie behind and reach the browser only as an error code.
func GETCallbackHandler(ctx *middlewares.AppContext) {
	query := ctx.Request.URL.Query()

	if errorParam := query.Get("error"); errorParam != "" {
		ctx.Logger.Warn("OIDC callback error", "error", errorParam, "description", query.Get("error_description"))
		redirectFlowError(ctx, &auth.FlowError{Code: auth.CodeAccessDenied, Message: errorParam})
		return
	}

	result, err := ctx.Auth.CompleteLogin(ctx, query.Get("code"), query.Get("state"))
	if err != nil {
		redirectFlowError(ctx, err)
		return
	}

	if err := ctx.Sessions.Write(ctx.Cookies(), result.Session); err != nil {
		ctx.Logger.Error("Failed to write session cookie", "error", err)
		redirectFlowError(ctx, err)
		return
	}

	ctx.Logger.Info("User successfully authenticated",
		"subject", result.Session.SubjectID,
		"session_id", result.Session.ID,
	)

	ctx.Redirect(result.RedirectTo, http.StatusFound)
}
