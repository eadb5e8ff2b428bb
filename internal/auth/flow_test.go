package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"account-portal/internal/config"
	"account-portal/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	linkedIssuer   = "https://linked.example.com"
	linkedAudience = "linked-client"
)

var linkedSecret = []byte(strings.Repeat("L", 32))

type flowFixture struct {
	primary  *testProvider
	linked   *testProvider
	auth     *Authenticator
	sessions *SessionManager
	rotator  *RefreshRotator
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	logger, _ := newTestLogger()
	store := newTestStore(t)
	primary := newTestProvider(t)
	linked := newTestProvider(t)

	linkedCodec, err := NewHMACTokenCodec(linkedSecret, linkedIssuer, linkedAudience)
	require.NoError(t, err)
	linkedOAuth := linked.oauthConfig(oauth2.AuthStyleInParams)
	linkedOAuth.ClientID = linkedAudience
	linkedOAuth.RedirectURL = "https://portal.example.com/auth/link/callback"
	linkedExchanger := NewCodeExchangeClient("linked", linkedOAuth, 2*time.Second, logger)

	sessions := newTestSessionManager(t, nil)
	rotator := NewRefreshRotator(store, linkedExchanger, logger)

	return &flowFixture{
		primary:  primary,
		linked:   linked,
		sessions: sessions,
		rotator:  rotator,
		auth: NewAuthenticator(AuthenticatorOptions{
			Primary: primary.provider(logger),
			Linked: &Provider{
				Name:      "linked",
				OAuth2:    linkedOAuth,
				Exchanger: linkedExchanger,
				Codec:     linkedCodec,
			},
			States:    NewStateTokenService(store, 10*time.Minute, logger),
			Sessions:  sessions,
			Rotator:   rotator,
			Redirects: config.DefaultAuthConfig,
			Logger:    logger,
		}),
	}
}

// startLogin returns the state and nonce carried by the authorize redirect.
func (f *flowFixture) startLogin(t *testing.T, returnTo string) (*Redirect, url.Values) {
	t.Helper()
	redirect, err := f.auth.StartLogin(context.Background(), returnTo)
	require.NoError(t, err)

	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	return redirect, u.Query()
}

func (f *flowFixture) respondWithIDToken(t *testing.T, claims jwt.MapClaims) {
	f.primary.respondTokens(map[string]interface{}{
		"access_token": "at-1",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     mintRS256(t, claims),
	})
}

func requireFlowError(t *testing.T, err error, code string, sentinel error) {
	t.Helper()
	var flowErr *FlowError
	require.True(t, errors.As(err, &flowErr), "expected FlowError, got %v", err)
	assert.Equal(t, code, flowErr.Code)
	assert.ErrorIs(t, err, sentinel)
}

func TestAuthenticator_LoginEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)

	redirect, query := f.startLogin(t, "/dashboard")
	assert.Equal(t, redirect.State, query.Get("state"))
	assert.Contains(t, redirect.URL, "state="+redirect.State)
	assert.Equal(t, testClientID, query.Get("client_id"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	require.NotEmpty(t, query.Get("nonce"))

	f.respondWithIDToken(t, f.primary.idTokenClaims("user-1", query.Get("nonce")))

	result, err := f.auth.CompleteLogin(ctx, "abc", redirect.State)
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.Session.SubjectID)
	assert.Equal(t, f.primary.URL(), result.Session.Issuer)
	assert.Equal(t, "Ada Lovelace", result.Session.DisplayName)
	assert.Equal(t, "/dashboard", result.RedirectTo)

	requests := f.primary.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "abc", requests[0].Form.Get("code"))
	assert.Equal(t, query.Get("code_challenge"), oauth2.S256ChallengeFromVerifier(requests[0].Form.Get("code_verifier")))

	// Replaying the callback fails and never reaches the provider.
	_, err = f.auth.CompleteLogin(ctx, "abc", redirect.State)
	requireFlowError(t, err, CodeStateInvalid, ErrStateInvalid)
	assert.Len(t, f.primary.Requests(), 1)
}

func TestAuthenticator_CompleteLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		respond  func(t *testing.T, f *flowFixture, nonce string)
		wantCode string
		wantErr  error
	}{
		{
			name: "expired id token",
			code: "abc",
			respond: func(t *testing.T, f *flowFixture, nonce string) {
				claims := f.primary.idTokenClaims("user-1", nonce)
				claims["iat"] = time.Now().Add(-2 * time.Hour).Unix()
				claims["exp"] = time.Now().Add(-time.Hour).Unix()
				f.respondWithIDToken(t, claims)
			},
			wantCode: CodeInvalidToken,
			wantErr:  ErrInvalidToken,
		},
		{
			name: "nonce mismatch",
			code: "abc",
			respond: func(t *testing.T, f *flowFixture, _ string) {
				f.respondWithIDToken(t, f.primary.idTokenClaims("user-1", "replayed-nonce"))
			},
			wantCode: CodeInvalidToken,
			wantErr:  ErrInvalidToken,
		},
		{
			name: "no id token",
			code: "abc",
			respond: func(t *testing.T, f *flowFixture, _ string) {
				f.primary.respondTokens(map[string]interface{}{"access_token": "at", "token_type": "Bearer"})
			},
			wantCode: CodeInvalidToken,
			wantErr:  ErrInvalidToken,
		},
		{
			name: "provider rejects code",
			code: "abc",
			respond: func(t *testing.T, f *flowFixture, _ string) {
				f.primary.respondError(http.StatusBadRequest, "invalid_grant")
			},
			wantCode: CodeExchangeFailed,
			wantErr:  ErrExchangeFailed,
		},
		{
			name:     "missing code",
			code:     "",
			respond:  func(t *testing.T, f *flowFixture, _ string) {},
			wantCode: CodeInvalidRequest,
			wantErr:  ErrExchangeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlowFixture(t)
			redirect, query := f.startLogin(t, "/")
			tt.respond(t, f, query.Get("nonce"))

			result, err := f.auth.CompleteLogin(context.Background(), tt.code, redirect.State)
			assert.Nil(t, result)
			requireFlowError(t, err, tt.wantCode, tt.wantErr)

			// The state is spent even though the login failed.
			_, err = f.auth.CompleteLogin(context.Background(), "abc", redirect.State)
			requireFlowError(t, err, CodeStateInvalid, ErrStateNotFound)
		})
	}
}

func TestAuthenticator_StartLoginRejectsForeignReturnTo(t *testing.T) {
	f := newFlowFixture(t)

	for _, returnTo := range []string{"https://evil.example.com/", "//evil.example.com", ""} {
		redirect, query := f.startLogin(t, returnTo)
		f.respondWithIDToken(t, f.primary.idTokenClaims("user-1", query.Get("nonce")))

		result, err := f.auth.CompleteLogin(context.Background(), "abc", redirect.State)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultAuthConfig.PostLoginRedirect, result.RedirectTo, "returnTo %q", returnTo)
	}
}

func TestAuthenticator_LinkStateCannotCompleteLogin(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	session := testSession(time.Now())

	redirect, err := f.auth.StartLink(ctx, session)
	require.NoError(t, err)

	_, err = f.auth.CompleteLogin(ctx, "abc", redirect.State)
	requireFlowError(t, err, CodeStateInvalid, ErrStateInvalid)
}

func mintLinkedIDToken(t *testing.T, subject, nonce string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss": linkedIssuer,
		"sub": subject,
		"aud": linkedAudience,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(linkedSecret)
	require.NoError(t, err)
	return signed
}

func TestAuthenticator_LinkEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	session := testSession(time.Now())

	redirect, err := f.auth.StartLink(ctx, session)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(redirect.URL, f.linked.URL()+"/authorize?"))

	f.linked.respondTokens(map[string]interface{}{
		"access_token":  "linked-at",
		"refresh_token": "linked-rt",
		"token_type":    "Bearer",
		"expires_in":    600,
		"id_token":      mintLinkedIDToken(t, "acct-9", ""),
	})

	result, err := f.auth.CompleteLink(ctx, session, "abc", redirect.State)
	require.NoError(t, err)
	assert.Equal(t, session.ID, result.Session.ID)
	assert.Equal(t, "acct-9", result.Session.LinkedAccountID)
	assert.Empty(t, session.LinkedAccountID, "input session is not modified")
	assert.Equal(t, "linked-rt", result.Credential.RefreshTokenValue)

	requests := f.linked.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, linkedAudience, requests[0].Form.Get("client_id"))

	stored := storedCredential(t, f.rotator, "acct-9")
	assert.Equal(t, "linked-rt", stored.RefreshTokenValue)
}

func TestAuthenticator_LinkStateBoundToSession(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	session := testSession(time.Now())

	redirect, err := f.auth.StartLink(ctx, session)
	require.NoError(t, err)

	other := testSession(time.Now())
	other.ID = "sess-other"

	_, err = f.auth.CompleteLink(ctx, other, "abc", redirect.State)
	requireFlowError(t, err, CodeStateInvalid, ErrStateInvalid)
	assert.Empty(t, f.linked.Requests())
}

func TestAuthenticator_LinkWithoutRefreshToken(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)
	session := testSession(time.Now())

	redirect, err := f.auth.StartLink(ctx, session)
	require.NoError(t, err)

	f.linked.respondTokens(map[string]interface{}{
		"access_token": "linked-at",
		"token_type":   "Bearer",
		"id_token":     mintLinkedIDToken(t, "acct-9", ""),
	})

	_, err = f.auth.CompleteLink(ctx, session, "abc", redirect.State)
	requireFlowError(t, err, CodeExchangeFailed, ErrExchangeFailed)
}

func TestAuthenticator_LinkDisabled(t *testing.T) {
	logger, _ := newTestLogger()
	a := NewAuthenticator(AuthenticatorOptions{
		Primary:   newTestProvider(t).provider(logger),
		States:    NewStateTokenService(newTestStore(t), time.Minute, logger),
		Sessions:  newTestSessionManager(t, nil),
		Redirects: config.DefaultAuthConfig,
		Logger:    logger,
	})

	assert.False(t, a.LinkEnabled())
	_, err := a.StartLink(context.Background(), &models.Session{ID: "s"})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFlowError_RedirectURL(t *testing.T) {
	err := newFlowError(CodeAccessDenied, "user cancelled", nil)
	assert.Equal(t, "/error?error=access_denied", err.RedirectURL("/error"))
	assert.Contains(t, err.Error(), "access_denied")
}
