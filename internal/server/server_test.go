package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"account-portal/internal/config"
	"account-portal/internal/data"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	linkedIssuer = "https://linked.example.com"
	linkedSecret = "linked-hmac-secret-0123456789abcdef"
)

// fakeProvider serves the primary provider token and JWKS endpoints, and the
// linked provider token endpoint.
type fakeProvider struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	mu            sync.Mutex
	nonce         string
	idTokenExpiry time.Duration
	refreshCalls  int
	codeVerifiers []string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &fakeProvider{key: key, idTokenExpiry: time.Hour}

	mux := http.NewServeMux()
	mux.HandleFunc("/jwks", p.serveJWKS)
	mux.HandleFunc("/token", p.servePrimaryToken)
	mux.HandleFunc("/linked/token", p.serveLinkedToken)

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) URL() string {
	return p.server.URL
}

func (p *fakeProvider) expectNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonce = nonce
}

func (p *fakeProvider) refreshCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

func (p *fakeProvider) verifiers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.codeVerifiers...)
}

func (p *fakeProvider) serveJWKS(w http.ResponseWriter, r *http.Request) {
	pub := p.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (p *fakeProvider) servePrimaryToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "abc" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	p.mu.Lock()
	p.codeVerifiers = append(p.codeVerifiers, r.PostForm.Get("code_verifier"))
	nonce, expiry := p.nonce, p.idTokenExpiry
	p.mu.Unlock()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   p.URL(),
		"aud":   "portal",
		"sub":   "user-1",
		"name":  "Ada Lovelace",
		"nonce": nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(expiry).Unix(),
	})
	token.Header["kid"] = "test-key"
	idToken, err := token.SignedString(p.key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "primary-access",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     idToken,
	})
}

func (p *fakeProvider) serveLinkedToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		now := time.Now()
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iss": linkedIssuer,
			"aud": "linked-client",
			"sub": "acct-9",
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}).SignedString([]byte(linkedSecret))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "linked-access",
			"token_type":    "Bearer",
			"expires_in":    60,
			"refresh_token": "linked-refresh-1",
			"id_token":      idToken,
		})
	case "refresh_token":
		p.mu.Lock()
		p.refreshCalls++
		p.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestRouter(t *testing.T, provider *fakeProvider) *chi.Mux {
	t.Helper()

	cfg, err := config.ParseConfig([]byte(fmt.Sprintf(`
server:
  external_url: https://portal.example.com
log:
  level: error
oidc:
  client_id: portal
  client_secret: s3cret
  issuer_url: %[1]s
  redirect_url: https://portal.example.com/auth/callback
  authorize_url: %[1]s/authorize
  token_url: %[1]s/token
  jwks_url: %[1]s/jwks
linked:
  enabled: true
  client_id: linked-client
  client_secret: linked-s3cret
  authorize_url: %[1]s/linked/authorize
  token_url: %[1]s/linked/token
  redirect_url: https://portal.example.com/auth/link/callback
  issuer: %[2]s
  hmac_secret: %[3]s
sessions:
  secret: 0123456789abcdef0123456789abcdef
  secure: false
`, provider.URL(), linkedIssuer, linkedSecret)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := data.NewMemStore()
	t.Cleanup(func() { _ = store.Close() })

	app, err := newApplication(ctx, cfg, store, newLogger(cfg.Log, io.Discard))
	require.NoError(t, err)

	return setupRouter(app.appCtx)
}

func serve(router http.Handler, method, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func startLogin(t *testing.T, router http.Handler, provider *fakeProvider) string {
	t.Helper()

	rr := serve(router, http.MethodGet, "/auth/login?rd=%2Fsettings", nil)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Empty(t, rr.Result().Cookies())

	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(location.String(), provider.URL()+"/authorize?"))

	query := location.Query()
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	provider.expectNonce(query.Get("nonce"))

	return query.Get("state")
}

func TestServer_LoginRoundTrip(t *testing.T) {
	provider := newFakeProvider(t)
	router := newTestRouter(t, provider)

	state := startLogin(t, router, provider)
	require.NotEmpty(t, state)

	rr := serve(router, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/settings", rr.Header().Get("Location"))
	cookie := sessionCookie(t, rr)
	assert.True(t, cookie.HttpOnly)
	require.Len(t, provider.verifiers(), 1)
	assert.NotEmpty(t, provider.verifiers()[0])

	rr = serve(router, http.MethodGet, "/auth/status", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"authenticated":true`)
	assert.Contains(t, rr.Body.String(), `"sub":"user-1"`)

	replay := serve(router, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	assert.Equal(t, "/error?error=state_invalid", replay.Header().Get("Location"))
	assert.Empty(t, replay.Result().Cookies())
	assert.Len(t, provider.verifiers(), 1)

	rr = serve(router, http.MethodGet, "/auth/logout", cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	cleared := sessionCookie(t, rr)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestServer_ExpiredIdentityTokenIsRejected(t *testing.T) {
	provider := newFakeProvider(t)
	provider.idTokenExpiry = -time.Minute
	router := newTestRouter(t, provider)

	state := startLogin(t, router, provider)

	rr := serve(router, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/error?error=invalid_token", rr.Header().Get("Location"))
	assert.Empty(t, rr.Result().Cookies())
}

func TestServer_ProviderDenial(t *testing.T) {
	provider := newFakeProvider(t)
	router := newTestRouter(t, provider)

	state := startLogin(t, router, provider)

	rr := serve(router, http.MethodGet, "/auth/callback?error=access_denied&state="+url.QueryEscape(state), nil)
	assert.Equal(t, "/error?error=access_denied", rr.Header().Get("Location"))
}

func TestServer_LinkThenRefreshRequiresReauth(t *testing.T) {
	provider := newFakeProvider(t)
	router := newTestRouter(t, provider)

	state := startLogin(t, router, provider)
	cookie := sessionCookie(t, serve(router, http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil))

	rr := serve(router, http.MethodGet, "/auth/link", cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(location.String(), provider.URL()+"/linked/authorize?"))
	linkState := location.Query().Get("state")

	rr = serve(router, http.MethodGet, "/auth/link/callback?code=lc&state="+url.QueryEscape(linkState), cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	linkedCookie := sessionCookie(t, rr)

	rr = serve(router, http.MethodGet, "/auth/status", linkedCookie)
	assert.Contains(t, rr.Body.String(), `"linked":true`)

	for i := 0; i < 2; i++ {
		rr = serve(router, http.MethodPost, "/auth/link/refresh", linkedCookie)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"reauth_required","redirect_url":"/auth/link"}`, rr.Body.String())
	}
	assert.Equal(t, 1, provider.refreshCount())

	rr = serve(router, http.MethodDelete, "/auth/link", linkedCookie)
	require.Equal(t, http.StatusOK, rr.Code)
	unlinkedCookie := sessionCookie(t, rr)

	rr = serve(router, http.MethodGet, "/auth/status", unlinkedCookie)
	assert.Contains(t, rr.Body.String(), `"linked":false`)

	rr = serve(router, http.MethodPost, "/auth/link/refresh", unlinkedCookie)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_AnonymousAccess(t *testing.T) {
	provider := newFakeProvider(t)
	router := newTestRouter(t, provider)

	rr := serve(router, http.MethodGet, "/auth/status", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(router, http.MethodGet, "/auth/link", nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/auth/login?rd=%2Fauth%2Flink", rr.Header().Get("Location"))

	rr = serve(router, http.MethodPost, "/auth/link/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())

	rr = serve(router, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"OK"}`, rr.Body.String())
}
