package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account-portal/internal/data"
	"account-portal/internal/metrics"
	"account-portal/internal/models"
)

const statePrefix = "state:"

// StateOptions is the round-trip data bound to a new state value.
type StateOptions struct {
	Purpose      models.StatePurpose
	Nonce        string
	CodeVerifier string
	ReturnTo     string
	SessionID    string
}

// StateTokenService issues single-use anti-forgery values for authorization round trips.
type StateTokenService struct {
	store  data.Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewStateTokenService(store data.Store, ttl time.Duration, logger *slog.Logger) *StateTokenService {
	return &StateTokenService{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

func (s *StateTokenService) Issue(ctx context.Context, opts StateOptions) (*models.StateToken, error) {
	if opts.Purpose == "" {
		opts.Purpose = models.StatePurposeLogin
	}

	now := s.now()
	token := &models.StateToken{
		Value:        GenerateRandString(defaultRandomBytes),
		Purpose:      opts.Purpose,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.ttl),
		Nonce:        opts.Nonce,
		CodeVerifier: opts.CodeVerifier,
		ReturnTo:     opts.ReturnTo,
		SessionID:    opts.SessionID,
	}

	record, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	if err := s.store.Set(ctx, statePrefix+token.Value, record, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to persist state: %w", err)
	}

	metrics.StateTokensTotal.WithLabelValues(string(opts.Purpose), "issued").Inc()

	return token, nil
}

// Verify consumes value. The record is gone afterwards whether or not it was valid.
func (s *StateTokenService) Verify(ctx context.Context, value string, purpose models.StatePurpose) (*models.StateToken, error) {
	token, err := s.consume(ctx, value, purpose)
	if err != nil {
		metrics.StateTokensTotal.WithLabelValues(string(purpose), "rejected").Inc()
		return nil, err
	}

	metrics.StateTokensTotal.WithLabelValues(string(purpose), "verified").Inc()
	return token, nil
}

func (s *StateTokenService) consume(ctx context.Context, value string, purpose models.StatePurpose) (*models.StateToken, error) {
	if value == "" {
		return nil, notFound("empty state")
	}

	record, err := s.store.GetDel(ctx, statePrefix+value)
	if errors.Is(err, data.ErrNotFound) {
		return nil, notFound("unknown or consumed state")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateInvalid, err)
	}

	var token models.StateToken
	if err := json.Unmarshal(record, &token); err != nil {
		s.logger.Warn("discarding undecodable state record", "error", err)
		return nil, notFound("undecodable state")
	}
	token.Value = value

	switch {
	case token.Consumed:
		return nil, notFound("state already consumed")
	case token.IsExpired(s.now()):
		return nil, notFound("state expired")
	case token.Purpose != purpose:
		return nil, notFound("state issued for " + string(token.Purpose))
	}

	token.Consumed = true
	return &token, nil
}

// Sweep drops expired state records on backends without native expiry.
func (s *StateTokenService) Sweep(ctx context.Context) (int, error) {
	return s.store.Sweep(ctx)
}

func notFound(reason string) error {
	return fmt.Errorf("%w: %w: %s", ErrStateInvalid, ErrStateNotFound, reason)
}
