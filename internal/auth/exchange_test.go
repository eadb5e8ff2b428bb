package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	"account-portal/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestCodeExchangeClient_ExchangeCode_HeaderAuth(t *testing.T) {
	p := newTestProvider(t)
	p.respondTokens(map[string]interface{}{
		"access_token":  "at-1",
		"refresh_token": "rt-1",
		"id_token":      "idt",
		"token_type":    "Bearer",
		"scope":         "openid profile",
		"expires_in":    3600,
	})

	logger, _ := newTestLogger()
	client := NewCodeExchangeClient("primary", p.oauthConfig(oauth2.AuthStyleInHeader), time.Second, logger)

	tokens, err := client.ExchangeCode(context.Background(), "abc", "verifier-1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "rt-1", tokens.RefreshToken)
	assert.Equal(t, "idt", tokens.IDToken)
	assert.Equal(t, "openid profile", tokens.Scope)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tokens.Expiry, 5*time.Second)

	requests := p.Requests()
	require.Len(t, requests, 1)
	form := requests[0].Form
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "abc", form.Get("code"))
	assert.Equal(t, testRedirectURI, form.Get("redirect_uri"))
	assert.Equal(t, "verifier-1", form.Get("code_verifier"))
	assert.Empty(t, form.Get("client_secret"))

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte(testClientID+":"+testClientSecret))
	assert.Equal(t, wantAuth, requests[0].Authorization)
}

func TestCodeExchangeClient_ExchangeCode_ParamsAuth(t *testing.T) {
	p := newTestProvider(t)
	p.respondTokens(map[string]interface{}{"access_token": "at-1", "token_type": "Bearer"})

	logger, _ := newTestLogger()
	client := NewCodeExchangeClient("primary", p.oauthConfig(oauth2.AuthStyleInParams), time.Second, logger)

	_, err := client.ExchangeCode(context.Background(), "abc", "")
	require.NoError(t, err)

	requests := p.Requests()
	require.Len(t, requests, 1)
	assert.Empty(t, requests[0].Authorization)
	assert.Equal(t, testClientID, requests[0].Form.Get("client_id"))
	assert.Equal(t, testClientSecret, requests[0].Form.Get("client_secret"))
	assert.Empty(t, requests[0].Form.Get("code_verifier"))
}

func TestCodeExchangeClient_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(p *testProvider)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid grant",
			setup:      func(p *testProvider) { p.respondError(http.StatusBadRequest, "invalid_grant") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_grant",
		},
		{
			name:       "server error",
			setup:      func(p *testProvider) { p.respondError(http.StatusInternalServerError, "server_error") },
			wantStatus: http.StatusInternalServerError,
			wantCode:   "server_error",
		},
		{
			name: "malformed json",
			setup: func(p *testProvider) {
				p.respond(func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					_, _ = w.Write([]byte(`{"access_token":`))
				})
			},
		},
		{
			name: "missing access token",
			setup: func(p *testProvider) {
				p.respondTokens(map[string]interface{}{"token_type": "Bearer"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t)
			tt.setup(p)

			logger, logs := newTestLogger()
			client := NewCodeExchangeClient("primary", p.oauthConfig(oauth2.AuthStyleInHeader), time.Second, logger)

			tokens, err := client.ExchangeCode(context.Background(), "secret-code-value", "")
			assert.Nil(t, tokens)
			require.ErrorIs(t, err, ErrExchangeFailed)

			var exchangeErr *ExchangeError
			require.True(t, errors.As(err, &exchangeErr))
			assert.Equal(t, metrics.GrantAuthorizationCode, exchangeErr.Grant)
			assert.Equal(t, tt.wantStatus, exchangeErr.StatusCode)
			assert.Equal(t, tt.wantCode, exchangeErr.ErrorCode)

			assert.NotContains(t, err.Error(), "rejected by test provider")
			assert.NotContains(t, logs.String(), "secret-code-value")
			assert.NotContains(t, logs.String(), testClientSecret)
			assert.Contains(t, logs.String(), "token exchange failed")
		})
	}
}

func TestCodeExchangeClient_Timeout(t *testing.T) {
	p := newTestProvider(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	p.respond(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	logger, _ := newTestLogger()
	client := NewCodeExchangeClient("primary", p.oauthConfig(oauth2.AuthStyleInHeader), 100*time.Millisecond, logger)

	start := time.Now()
	_, err := client.ExchangeCode(context.Background(), "abc", "")
	assert.ErrorIs(t, err, ErrExchangeFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCodeExchangeClient_ExchangeRefreshToken(t *testing.T) {
	p := newTestProvider(t)
	p.respondTokens(map[string]interface{}{
		"access_token":  "at-2",
		"refresh_token": "rt-2",
		"token_type":    "Bearer",
		"expires_in":    600,
	})

	logger, logs := newTestLogger()
	client := NewCodeExchangeClient("linked", p.oauthConfig(oauth2.AuthStyleInHeader), time.Second, logger)

	tokens, err := client.ExchangeRefreshToken(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", tokens.AccessToken)
	assert.Equal(t, "rt-2", tokens.RefreshToken)

	requests := p.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "refresh_token", requests[0].Form.Get("grant_type"))
	assert.Equal(t, "rt-1", requests[0].Form.Get("refresh_token"))
	assert.NotContains(t, logs.String(), "rt-1")
	assert.NotContains(t, logs.String(), "at-2")
}

func TestCodeExchangeClient_EmptyInputsNeverCallProvider(t *testing.T) {
	p := newTestProvider(t)
	logger, _ := newTestLogger()
	client := NewCodeExchangeClient("primary", p.oauthConfig(oauth2.AuthStyleInHeader), time.Second, logger)

	_, err := client.ExchangeCode(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrExchangeFailed)

	_, err = client.ExchangeRefreshToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrExchangeFailed)

	assert.Empty(t, p.Requests())
}
