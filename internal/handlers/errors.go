package handlers

import (
	"errors"
	"net/http"

	"account-portal/internal/auth"
	"account-portal/internal/middlewares"
)

// redirectFlowError sends the browser to the error page with a code it may show.
// Failures that are not flow errors are logged and reported as server_error.
func redirectFlowError(ctx *middlewares.AppContext, err error) {
	var flowErr *auth.FlowError
	if !errors.As(err, &flowErr) {
		ctx.Logger.Error("authentication request failed", "error", err)
		flowErr = &auth.FlowError{Code: auth.CodeServerError}
	}

	ctx.Redirect(flowErr.RedirectURL(ctx.Config.Auth.ErrorRedirect), http.StatusFound)
}
