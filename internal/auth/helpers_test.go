package auth

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"account-portal/internal/config"
	"account-portal/internal/data"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID     = "portal"
	testClientSecret = "s3cret"
	testRedirectURI  = "https://portal.example.com/auth/callback"
	testSecret       = "0123456789abcdef0123456789abcdef"
)

var testSigningKey = sync.OnceValue(func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
})

// tokenRequest is one call the test provider received at its token endpoint.
type tokenRequest struct {
	Form          url.Values
	Authorization string
}

// testProvider is an httptest authorization server with a token endpoint.
type testProvider struct {
	server *httptest.Server

	mu       sync.Mutex
	handler  http.HandlerFunc
	requests []tokenRequest
}

func newTestProvider(t *testing.T) *testProvider {
	t.Helper()

	p := &testProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		p.mu.Lock()
		p.requests = append(p.requests, tokenRequest{Form: r.PostForm, Authorization: r.Header.Get("Authorization")})
		handler := p.handler
		p.mu.Unlock()

		if handler == nil {
			writeTokenError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		handler(w, r)
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)

	return p
}

func (p *testProvider) URL() string {
	return p.server.URL
}

func (p *testProvider) respond(handler http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

func (p *testProvider) respondTokens(body map[string]interface{}) {
	p.respond(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, body)
	})
}

func (p *testProvider) respondError(status int, code string) {
	p.respond(func(w http.ResponseWriter, _ *http.Request) {
		writeTokenError(w, status, code)
	})
}

func (p *testProvider) Requests() []tokenRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tokenRequest(nil), p.requests...)
}

func (p *testProvider) oauthConfig(style oauth2.AuthStyle) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRedirectURI,
		Scopes:       []string{"openid", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.URL() + "/authorize",
			TokenURL:  p.URL() + "/token",
			AuthStyle: style,
		},
	}
}

func (p *testProvider) codec(now func() time.Time) *OIDCTokenCodec {
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&testSigningKey().PublicKey}}
	return NewKeySetTokenCodec(p.URL(), testClientID, keySet, now)
}

func (p *testProvider) provider(logger *slog.Logger) *Provider {
	cfg := p.oauthConfig(oauth2.AuthStyleInHeader)
	return &Provider{
		Name:      PrimaryProviderName,
		OAuth2:    cfg,
		Exchanger: NewCodeExchangeClient(PrimaryProviderName, cfg, 2*time.Second, logger),
		Codec:     p.codec(nil),
	}
}

// idTokenClaims returns claims for a token valid for one hour.
func (p *testProvider) idTokenClaims(subject, nonce string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   p.URL(),
		"sub":   subject,
		"aud":   testClientID,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"nonce": nonce,
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
	}
}

func mintRS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(testSigningKey())
	require.NoError(t, err)
	return signed
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeTokenError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": "rejected by test provider"})
}

// newTestLogger captures text logs so tests can assert what was not written.
func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func newTestSessionManager(t *testing.T, mutate func(*config.SessionConfig)) *SessionManager {
	t.Helper()
	cfg := config.DefaultSessionConfig
	cfg.Secret = testSecret
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewSessionManager(cfg, slog.Default())
	require.NoError(t, err)
	return m
}

// mapCookieStore is a bare CookieStore that keeps whatever value it is given.
type mapCookieStore map[string]string

func (s mapCookieStore) Get(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

func (s mapCookieStore) Set(c *http.Cookie) {
	if c.MaxAge < 0 {
		delete(s, c.Name)
		return
	}
	s[c.Name] = c.Value
}

func newTestStore(t *testing.T) data.Store {
	s := data.NewMemStore()
	t.Cleanup(func() { _ = s.Close() })
	return s
}
