package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"account-portal/internal/config"
	"account-portal/internal/metrics"
	"account-portal/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
)

var strictBase64 = base64.RawURLEncoding.Strict()

type sessionClaims struct {
	jwt.RegisteredClaims
	Name   string `json:"name,omitempty"`
	Linked string `json:"lnk,omitempty"`
}

// SessionManager turns a Session into a signed cookie and back. The same codec
// runs over any CookieStore, server or browser side.
type SessionManager struct {
	cfg    config.SessionConfig
	keys   *SessionKeys
	now    func() time.Time
	logger *slog.Logger
}

func NewSessionManager(cfg config.SessionConfig, logger *slog.Logger) (*SessionManager, error) {
	if len(cfg.Secret) < config.MinSessionSecretLength {
		return nil, fmt.Errorf("%w: session secret must be at least %d bytes", ErrConfiguration, config.MinSessionSecretLength)
	}
	if cfg.Name == "" {
		cfg.Name = config.DefaultSessionConfig.Name
	}
	if cfg.FixedTimeout <= 0 {
		cfg.FixedTimeout = config.DefaultSessionConfig.FixedTimeout
	}

	keys, err := DeriveSessionKeys([]byte(cfg.Secret))
	if err != nil {
		return nil, err
	}

	return &SessionManager{
		cfg:    cfg,
		keys:   keys,
		now:    time.Now,
		logger: logger,
	}, nil
}

func (m *SessionManager) Name() string {
	return m.cfg.Name
}

// NewSession starts a session for a freshly validated identity.
func (m *SessionManager) NewSession(identity *models.IdentityToken) (*models.Session, error) {
	now := m.now().Truncate(time.Second)

	expiresAt := now.Add(m.cfg.FixedTimeout)
	if m.cfg.DurationSource == config.DurationSourceOIDCTokens {
		expiresAt = identity.ExpiresAt.Truncate(time.Second)
	}
	if !expiresAt.After(now) {
		return nil, fmt.Errorf("%w: token already expired", ErrInvalidToken)
	}

	return &models.Session{
		ID:          uuid.NewString(),
		SubjectID:   identity.SubjectID,
		Issuer:      identity.Issuer,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
		DisplayName: identity.DisplayName,
	}, nil
}

// Refresh returns a copy of session with a new fixed-timeout expiry and the same ID.
// Sessions bound to the provider token lifetime keep their expiry.
func (m *SessionManager) Refresh(session *models.Session) *models.Session {
	refreshed := *session
	now := m.now().Truncate(time.Second)
	refreshed.IssuedAt = now
	if m.cfg.DurationSource != config.DurationSourceOIDCTokens {
		refreshed.ExpiresAt = now.Add(m.cfg.FixedTimeout)
	}
	return &refreshed
}

// Issue serializes session into a cookie. Session times must be whole seconds,
// as produced by NewSession and Refresh, so Read returns them unchanged.
func (m *SessionManager) Issue(session *models.Session) (*http.Cookie, error) {
	if session == nil || session.SubjectID == "" {
		return nil, errors.New("session has no subject")
	}
	if !isWholeSecond(session.ExpiresAt) || !isWholeSecond(session.IssuedAt) {
		return nil, errors.New("session times must be whole seconds")
	}

	now := m.now()
	if session.IsExpired(now) {
		return nil, errors.New("session already expired")
	}

	value, err := m.encode(session)
	if err != nil {
		return nil, err
	}

	maxAge := int(session.ExpiresAt.Sub(now) / time.Second)
	if maxAge < 1 {
		maxAge = 1
	}

	metrics.SessionsTotal.WithLabelValues("issued").Inc()

	return m.cookie(value, session.ExpiresAt, maxAge), nil
}

// Read returns the session in store. A missing, malformed, expired or tampered
// cookie reads as absent.
func (m *SessionManager) Read(store CookieStore) (*models.Session, bool) {
	value, ok := store.Get(m.cfg.Name)
	if !ok || value == "" {
		return nil, false
	}

	session, err := m.decode(value)
	if err != nil {
		m.logger.Debug("rejecting session cookie", "error", err)
		metrics.SessionsTotal.WithLabelValues("rejected").Inc()
		return nil, false
	}

	return session, true
}

// Clear returns a cookie that removes the session from the browser.
func (m *SessionManager) Clear() *http.Cookie {
	return m.cookie("", time.Unix(0, 0), -1)
}

func (m *SessionManager) Write(store CookieStore, session *models.Session) error {
	cookie, err := m.Issue(session)
	if err != nil {
		return err
	}
	store.Set(cookie)
	return nil
}

func (m *SessionManager) Load(store CookieStore) (*models.Session, bool) {
	return m.Read(store)
}

func (m *SessionManager) Revoke(store CookieStore) {
	store.Set(m.Clear())
	metrics.SessionsTotal.WithLabelValues("cleared").Inc()
}

func (m *SessionManager) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if m.cfg.SameSite == config.SameSiteStrict {
		sameSite = http.SameSiteStrictMode
	}

	return &http.Cookie{
		Name:     m.cfg.Name,
		Value:    value,
		Path:     "/",
		Domain:   m.cfg.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   m.cfg.IsSecure(),
		HttpOnly: true,
		SameSite: sameSite,
	}
}

func (m *SessionManager) encode(session *models.Session) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.SubjectID,
			Issuer:    session.Issuer,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		Name:   session.DisplayName,
		Linked: session.LinkedAccountID,
	}
	if !session.IssuedAt.IsZero() {
		claims.IssuedAt = jwt.NewNumericDate(session.IssuedAt)
	}

	var signed string
	err := m.keys.withSigningKey(func(key []byte) error {
		var err error
		signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}

	if !m.cfg.Encrypt {
		return signed, nil
	}
	return m.seal(signed)
}

func (m *SessionManager) decode(value string) (*models.Session, error) {
	if m.cfg.Encrypt {
		opened, err := m.open(value)
		if err != nil {
			return nil, err
		}
		value = opened
	}

	claims := &sessionClaims{}
	err := m.keys.withSigningKey(func(key []byte) error {
		_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(m.now),
			jwt.WithStrictDecoding(),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("session claims incomplete")
	}

	session := &models.Session{
		ID:              claims.ID,
		SubjectID:       claims.Subject,
		Issuer:          claims.Issuer,
		ExpiresAt:       claims.ExpiresAt.Time,
		DisplayName:     claims.Name,
		LinkedAccountID: claims.Linked,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}

	return session, nil
}

func (m *SessionManager) seal(plaintext string) (string, error) {
	var sealed []byte
	err := m.keys.withSealingKey(func(key []byte) error {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return err
		}
		nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
		_, _ = rand.Read(nonce)
		sealed = aead.Seal(nonce, nonce, []byte(plaintext), []byte(m.cfg.Name))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to seal session: %w", err)
	}

	return strictBase64.EncodeToString(sealed), nil
}

func (m *SessionManager) open(value string) (string, error) {
	sealed, err := strictBase64.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("malformed sealed session: %w", err)
	}

	var plaintext []byte
	err = m.keys.withSealingKey(func(key []byte) error {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return err
		}
		if len(sealed) < aead.NonceSize()+aead.Overhead() {
			return errors.New("sealed session too short")
		}
		nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
		plaintext, err = aead.Open(nil, nonce, ciphertext, []byte(m.cfg.Name))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to open sealed session: %w", err)
	}

	return string(plaintext), nil
}

func isWholeSecond(t time.Time) bool {
	return t.Equal(t.Truncate(time.Second))
}
