package handlers

import (
	"errors"
	"net/http"
	"time"

	"account-portal/internal/auth"
	"account-portal/internal/middlewares"
)

const linkPath = "/auth/link"

// GETLinkHandler starts linking the linked provider account to the current session.
func GETLinkHandler(ctx *middlewares.AppContext) {
	if !ctx.Auth.LinkEnabled() {
		ctx.SetJSONError(http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	redirect, err := ctx.Auth.StartLink(ctx, ctx.Session)
	if err != nil {
		ctx.Logger.Error("Failed to start account link", "error", err)
		ctx.SetJSONError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	ctx.Redirect(redirect.URL, http.StatusFound)
}

// GETLinkCallbackHandler stores the linked credential and reissues the session
// cookie carrying the linked account id.
func GETLinkCallbackHandler(ctx *middlewares.AppContext) {
	query := ctx.Request.URL.Query()

	if errorParam := query.Get("error"); errorParam != "" {
		ctx.Logger.Warn("link callback error", "error", errorParam, "description", query.Get("error_description"))
		redirectFlowError(ctx, &auth.FlowError{Code: auth.CodeAccessDenied, Message: errorParam})
		return
	}

	result, err := ctx.Auth.CompleteLink(ctx, ctx.Session, query.Get("code"), query.Get("state"))
	if err != nil {
		redirectFlowError(ctx, err)
		return
	}

	if err := ctx.Sessions.Write(ctx.Cookies(), result.Session); err != nil {
		ctx.Logger.Error("Failed to write session cookie", "error", err)
		redirectFlowError(ctx, err)
		return
	}
	ctx.Session = result.Session

	ctx.Redirect(result.RedirectTo, http.StatusFound)
}

type LinkRefreshResponse struct {
	Status          string     `json:"status"`
	RotatedAt       time.Time  `json:"rotated_at"`
	AccessExpiresAt *time.Time `json:"access_expires_at,omitempty"`
}

// POSTLinkRefreshHandler rotates the linked account refresh token on demand.
func POSTLinkRefreshHandler(ctx *middlewares.AppContext) {
	session := ctx.Session
	if session == nil || !session.HasLinkedAccount() {
		ctx.SetJSONError(http.StatusBadRequest, "no linked account")
		return
	}

	credential, err := ctx.Rotator.Rotate(ctx, session.LinkedAccountID)
	switch {
	case errors.Is(err, auth.ErrReauthRequired):
		ctx.Logger.Info("linked account requires reauthorization", "linked_account_id", session.LinkedAccountID)
		ctx.WriteJSON(http.StatusUnauthorized, map[string]string{
			"error":        "reauth_required",
			"redirect_url": linkPath,
		})
		return
	case errors.Is(err, auth.ErrRotationConflict):
		ctx.SetJSONError(http.StatusConflict, http.StatusText(http.StatusConflict))
		return
	case err != nil:
		ctx.Logger.Error("Failed to rotate linked credential", "error", err, "linked_account_id", session.LinkedAccountID)
		ctx.SetJSONError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	response := LinkRefreshResponse{
		Status:    "rotated",
		RotatedAt: credential.RotatedAt,
	}
	if !credential.AccessExpiresAt.IsZero() {
		response.AccessExpiresAt = &credential.AccessExpiresAt
	}

	ctx.WriteJSON(http.StatusOK, response)
}

// DELETELinkHandler forgets the linked account credential and reissues the
// session cookie without the linked account id.
func DELETELinkHandler(ctx *middlewares.AppContext) {
	if !ctx.Auth.LinkEnabled() {
		ctx.SetJSONError(http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	session := ctx.Session
	if session == nil || !session.HasLinkedAccount() {
		ctx.SetJSONError(http.StatusBadRequest, "no linked account")
		return
	}

	if err := ctx.Rotator.Unlink(ctx, session.LinkedAccountID); err != nil {
		ctx.Logger.Error("Failed to unlink account", "error", err, "linked_account_id", session.LinkedAccountID)
		ctx.SetJSONError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	unlinked := *session
	unlinked.LinkedAccountID = ""
	if err := ctx.Sessions.Write(ctx.Cookies(), &unlinked); err != nil {
		ctx.Logger.Error("Failed to write session cookie", "error", err)
		ctx.SetJSONError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	ctx.Session = &unlinked

	ctx.Logger.Info("linked account removed", "linked_account_id", session.LinkedAccountID, "sub", session.SubjectID)
	ctx.SetJSONStatus(http.StatusOK, "unlinked")
}
