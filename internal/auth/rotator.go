package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"account-portal/internal/data"
	"account-portal/internal/metrics"
	"account-portal/internal/models"

	"golang.org/x/sync/singleflight"
)

const (
	credentialPrefix = "credential:"
	reauthPrefix     = "reauth:"
)

// RefreshExchanger spends a refresh token at the linked provider.
type RefreshExchanger interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*models.ProviderTokens, error)
}

// RefreshRotator keeps exactly one live refresh token per linked account.
type RefreshRotator struct {
	store     data.Store
	exchanger RefreshExchanger
	group     singleflight.Group
	now       func() time.Time
	logger    *slog.Logger
}

func NewRefreshRotator(store data.Store, exchanger RefreshExchanger, logger *slog.Logger) *RefreshRotator {
	return &RefreshRotator{
		store:     store,
		exchanger: exchanger,
		now:       time.Now,
		logger:    logger,
	}
}

// Link stores the credential from a fresh authorization, replacing any earlier one.
func (r *RefreshRotator) Link(ctx context.Context, linkedAccountID string, tokens *models.ProviderTokens) (*models.RefreshCredential, error) {
	if linkedAccountID == "" {
		return nil, errors.New("linked account id is empty")
	}
	if tokens.RefreshToken == "" {
		return nil, fmt.Errorf("%w: provider returned no refresh token", ErrExchangeFailed)
	}

	cred := &models.RefreshCredential{
		LinkedAccountID:   linkedAccountID,
		RefreshTokenValue: tokens.RefreshToken,
		RotatedAt:         r.now(),
		AccessToken:       tokens.AccessToken,
		AccessExpiresAt:   tokens.Expiry,
	}

	record, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential: %w", err)
	}

	if err := r.store.Set(ctx, credentialPrefix+linkedAccountID, record, 0); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	if err := r.store.Delete(ctx, reauthPrefix+linkedAccountID); err != nil {
		return nil, fmt.Errorf("failed to clear reauthorization marker: %w", err)
	}

	r.logger.Info("linked account credential stored", "linked_account_id", linkedAccountID)

	return cred, nil
}

// Unlink forgets the credential and any reauthorization marker.
func (r *RefreshRotator) Unlink(ctx context.Context, linkedAccountID string) error {
	if err := r.store.Delete(ctx, credentialPrefix+linkedAccountID); err != nil {
		return err
	}
	return r.store.Delete(ctx, reauthPrefix+linkedAccountID)
}

// Rotate spends the stored refresh token and replaces it with the provider's
// answer. Concurrent calls for one account share a single provider request.
// A caller that is already canceled returns without touching the provider;
// once started, the shared rotation is not canceled by any one caller.
func (r *RefreshRotator) Rotate(ctx context.Context, linkedAccountID string) (*models.RefreshCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(linkedAccountID, func() (interface{}, error) {
		return r.rotate(shared, linkedAccountID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.RefreshCredential), nil
}

func (r *RefreshRotator) rotate(ctx context.Context, linkedAccountID string) (*models.RefreshCredential, error) {
	if r.needsReauth(ctx, linkedAccountID) {
		metrics.RotationsTotal.WithLabelValues(metrics.OutcomeReauth).Inc()
		return nil, fmt.Errorf("%w: previous rotation failed", ErrReauthRequired)
	}

	cred, raw, err := r.load(ctx, linkedAccountID)
	if err != nil {
		if errors.Is(err, ErrReauthRequired) {
			metrics.RotationsTotal.WithLabelValues(metrics.OutcomeReauth).Inc()
		}
		return nil, err
	}

	tokens, err := r.exchanger.ExchangeRefreshToken(ctx, cred.RefreshTokenValue)
	if err != nil {
		return nil, r.failRotation(ctx, linkedAccountID, raw, err)
	}

	next := &models.RefreshCredential{
		LinkedAccountID:   linkedAccountID,
		RefreshTokenValue: tokens.RefreshToken,
		RotatedAt:         r.now(),
		AccessToken:       tokens.AccessToken,
		AccessExpiresAt:   tokens.Expiry,
	}
	if next.RefreshTokenValue == "" {
		next.RefreshTokenValue = cred.RefreshTokenValue
	}

	nextRaw, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential: %w", err)
	}

	err = r.store.CompareAndSwap(ctx, credentialPrefix+linkedAccountID, raw, nextRaw, 0)
	switch {
	case errors.Is(err, data.ErrConflict):
		metrics.RotationsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		return nil, ErrRotationConflict
	case errors.Is(err, data.ErrNotFound):
		metrics.RotationsTotal.WithLabelValues(metrics.OutcomeReauth).Inc()
		return nil, fmt.Errorf("%w: credential removed during rotation", ErrReauthRequired)
	case err != nil:
		metrics.RotationsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("failed to store rotated credential: %w", err)
	}

	// A concurrent failure on another instance may have marked the account
	// after this rotation spent the token; the new credential is live.
	if err := r.store.Delete(ctx, reauthPrefix+linkedAccountID); err != nil {
		r.logger.Error("failed to clear reauthorization marker", "linked_account_id", linkedAccountID, "error", err)
	}

	metrics.RotationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	r.logger.Debug("refresh token rotated", "linked_account_id", linkedAccountID)

	return next, nil
}

// failRotation records the terminal reauthorization state for a rejected
// refresh token. The provider may already have revoked it, so it is never
// spent again. When another instance has replaced the credential in the
// meantime, the rejection was for a token that is no longer stored and the
// failure is a conflict instead.
func (r *RefreshRotator) failRotation(ctx context.Context, linkedAccountID string, spent []byte, cause error) error {
	if r.credentialReplaced(ctx, linkedAccountID, spent) {
		metrics.RotationsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		return fmt.Errorf("%w: credential rotated elsewhere: %w", ErrRotationConflict, cause)
	}

	if err := r.store.Set(ctx, reauthPrefix+linkedAccountID, []byte(r.now().UTC().Format(time.RFC3339)), 0); err != nil {
		r.logger.Error("failed to record reauthorization marker", "linked_account_id", linkedAccountID, "error", err)
	}

	// Checked again after marking: a swap that landed between the first check
	// and the marker would otherwise leave a live credential locked out.
	if r.credentialReplaced(ctx, linkedAccountID, spent) {
		if err := r.store.Delete(ctx, reauthPrefix+linkedAccountID); err != nil {
			r.logger.Error("failed to clear reauthorization marker", "linked_account_id", linkedAccountID, "error", err)
		}
		metrics.RotationsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		return fmt.Errorf("%w: credential rotated elsewhere: %w", ErrRotationConflict, cause)
	}

	r.logger.Warn("refresh rotation failed, reauthorization required", "linked_account_id", linkedAccountID)
	metrics.RotationsTotal.WithLabelValues(metrics.OutcomeReauth).Inc()
	return fmt.Errorf("%w: %w", ErrReauthRequired, cause)
}

// credentialReplaced reports whether the stored credential differs from spent.
// A removed credential counts as unchanged.
func (r *RefreshRotator) credentialReplaced(ctx context.Context, linkedAccountID string, spent []byte) bool {
	current, err := r.store.Get(ctx, credentialPrefix+linkedAccountID)
	if err != nil {
		return false
	}
	return !bytes.Equal(current, spent)
}

// Due lists linked accounts whose access token expires within window and can still be rotated.
func (r *RefreshRotator) Due(ctx context.Context, window time.Duration) ([]string, error) {
	keys, err := r.store.Keys(ctx, credentialPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	now := r.now()
	var due []string
	for _, key := range keys {
		id := strings.TrimPrefix(key, credentialPrefix)
		if r.needsReauth(ctx, id) {
			continue
		}

		cred, _, err := r.load(ctx, id)
		if err != nil {
			continue
		}
		if cred.AccessExpiresWithin(now, window) {
			due = append(due, id)
		}
	}

	return due, nil
}

func (r *RefreshRotator) needsReauth(ctx context.Context, linkedAccountID string) bool {
	_, err := r.store.Get(ctx, reauthPrefix+linkedAccountID)
	return err == nil
}

func (r *RefreshRotator) load(ctx context.Context, linkedAccountID string) (*models.RefreshCredential, []byte, error) {
	raw, err := r.store.Get(ctx, credentialPrefix+linkedAccountID)
	if errors.Is(err, data.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: no credential for linked account", ErrReauthRequired)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load credential: %w", err)
	}

	var cred models.RefreshCredential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, nil, fmt.Errorf("failed to decode credential: %w", err)
	}

	return &cred, raw, nil
}
