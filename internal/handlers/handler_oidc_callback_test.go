package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"account-portal/internal/auth"
	"account-portal/internal/testutil"

	"go.uber.org/mock/gomock"
)

var (
	exampleErrorDescription = "This is the detailed description of the error!"
	exampleCode             = "abc"
	exampleState            = "S1"
)

func TestGETCallbackHandler_ShouldSetCookieAndRedirect(t *testing.T) {
	tc := testutil.NewTestContextWithURL(t, "GET", fmt.Sprintf("/auth/callback?code=%s&state=%s", exampleCode, exampleState))
	defer tc.Finish()

	session := testutil.NewTestSession()
	tc.MockFlow.EXPECT().CompleteLogin(gomock.Any(), exampleCode, exampleState).
		Return(&auth.LoginResult{Session: session, RedirectTo: "/settings"}, nil)
	tc.ExpectSessionWrite(session, nil)

	tc.CallHandler(GETCallbackHandler)

	tc.AssertStatus(t, http.StatusFound)
	tc.AssertLocation(t, "/settings")
	tc.AssertLogContains(t, slog.LevelInfo, "User successfully authenticated")
	tc.AssertLogsExclude(t, exampleCode)
}

func TestGETCallbackHandler_ProviderErrorIsAccessDenied(t *testing.T) {
	tc := testutil.NewTestContextWithURL(t, "GET", "/auth/callback")
	defer tc.Finish()
	tc.WithQueryParam("error", "access_denied")
	tc.WithQueryParam("error_description", exampleErrorDescription)
	tc.WithQueryParam("state", exampleState)

	tc.CallHandler(GETCallbackHandler)

	tc.AssertStatus(t, http.StatusFound)
	tc.AssertLocation(t, "/error?error=access_denied")
	tc.AssertLogContains(t, slog.LevelWarn, "OIDC callback error")
}

func TestGETCallbackHandler_FlowErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "replayed state",
			err:      &auth.FlowError{Code: auth.CodeStateInvalid, Err: auth.ErrStateInvalid},
			wantCode: "state_invalid",
		},
		{
			name:     "exchange failure",
			err:      &auth.FlowError{Code: auth.CodeExchangeFailed, Err: auth.ErrExchangeFailed},
			wantCode: "exchange_failed",
		},
		{
			name:     "expired id token",
			err:      &auth.FlowError{Code: auth.CodeInvalidToken, Err: auth.ErrInvalidToken},
			wantCode: "invalid_token",
		},
		{
			name:     "unexpected failure",
			err:      errors.New("store unavailable"),
			wantCode: "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContextWithURL(t, "GET", "/auth/callback?code=abc&state=S1")
			defer tc.Finish()

			tc.MockFlow.EXPECT().CompleteLogin(gomock.Any(), "abc", "S1").Return(nil, tt.err)

			tc.CallHandler(GETCallbackHandler)

			tc.AssertStatus(t, http.StatusFound)
			tc.AssertLocation(t, "/error?error="+tt.wantCode)
			if cookies := tc.Response.Result().Cookies(); len(cookies) != 0 {
				t.Errorf("Expected no cookies on failure, got %d", len(cookies))
			}
		})
	}
}

func TestGETCallbackHandler_CookieWriteFailure(t *testing.T) {
	tc := testutil.NewTestContextWithURL(t, "GET", "/auth/callback?code=abc&state=S1")
	defer tc.Finish()

	session := testutil.NewTestSession()
	tc.MockFlow.EXPECT().CompleteLogin(gomock.Any(), "abc", "S1").
		Return(&auth.LoginResult{Session: session, RedirectTo: "/"}, nil)
	tc.ExpectSessionWrite(session, errors.New("session already expired"))

	tc.CallHandler(GETCallbackHandler)

	tc.AssertStatus(t, http.StatusFound)
	tc.AssertLocation(t, "/error?error=server_error")
	tc.AssertLogContains(t, slog.LevelError, "Failed to write session cookie")
}
