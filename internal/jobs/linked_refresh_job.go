package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account-portal/internal/auth"
	"account-portal/internal/models"
)

type LinkedRefresher interface {
	Due(ctx context.Context, window time.Duration) ([]string, error)
	Rotate(ctx context.Context, linkedAccountID string) (*models.RefreshCredential, error)
}

// LinkedRefreshJob rotates linked credentials whose access token expires within window.
// Accounts that need reauthorization are skipped until the user links again.
type LinkedRefreshJob struct {
	refresher LinkedRefresher
	window    time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

func NewLinkedRefreshJob(refresher LinkedRefresher, window, interval time.Duration, logger *slog.Logger) *LinkedRefreshJob {
	return &LinkedRefreshJob{
		refresher: refresher,
		window:    window,
		interval:  interval,
		logger:    logger,
	}
}

func (j *LinkedRefreshJob) Name() string {
	return "linked-refresh"
}

func (j *LinkedRefreshJob) Interval() time.Duration {
	return j.interval
}

func (j *LinkedRefreshJob) RunOnce(ctx context.Context) error {
	due, err := j.refresher.Due(ctx, j.window)
	if err != nil {
		return fmt.Errorf("listing due credentials: %w", err)
	}

	var failed int
	for _, id := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := j.refresher.Rotate(ctx, id)
		switch {
		case err == nil:
			j.logger.Debug("rotated linked credential", "linked_account_id", id)
		case errors.Is(err, auth.ErrReauthRequired):
			j.logger.Info("linked account requires reauthorization", "linked_account_id", id)
		case errors.Is(err, auth.ErrRotationConflict):
			j.logger.Debug("linked credential rotated elsewhere", "linked_account_id", id)
		default:
			failed++
			j.logger.Warn("failed to rotate linked credential", "linked_account_id", id, "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d linked credentials failed to rotate", failed, len(due))
	}
	return nil
}
