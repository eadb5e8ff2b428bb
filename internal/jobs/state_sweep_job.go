package jobs

import (
	"context"
	"log/slog"
	"time"
)

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// StateSweepJob removes abandoned state tokens from stores without native expiry.
type StateSweepJob struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
}

func NewStateSweepJob(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *StateSweepJob {
	return &StateSweepJob{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

func (j *StateSweepJob) Name() string {
	return "state-sweep"
}

func (j *StateSweepJob) Interval() time.Duration {
	return j.interval
}

func (j *StateSweepJob) RunOnce(ctx context.Context) error {
	removed, err := j.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.logger.Debug("swept expired keys", "removed", removed)
	}
	return nil
}
