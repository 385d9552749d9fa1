package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/datasync/internal/clock"
	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/lock"
	"github.com/smallbiznis/datasync/internal/observability/metrics"
	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrActivityInProgress = errors.New("activity_in_progress")

type SchedulerParams struct {
	fx.In

	Runner  *Runner
	Locker  lock.Locker
	Clock   clock.Clock
	Config  config.Config
	Log     *zap.Logger
	Metrics metrics.Config
}

// Scheduler runs activities one at a time, guarded by the activity lock so
// concurrent invocations on the same staging area never overlap.
type Scheduler struct {
	runner   *Runner
	locker   lock.Locker
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.PipelineMetrics
	interval time.Duration
	lockKey  string
	lockTTL  time.Duration
}

func NewScheduler(p SchedulerParams) *Scheduler {
	interval := p.Config.Pipeline.WatchInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ttl := p.Config.Pipeline.LockTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Scheduler{
		runner:   p.Runner,
		locker:   p.Locker,
		clock:    p.Clock,
		log:      p.Log.Named("scheduler"),
		metrics:  metrics.PipelineWithConfig(p.Metrics),
		interval: interval,
		lockKey:  p.Config.Pipeline.LockKey,
		lockTTL:  ttl,
	}
}

// RunOnce runs a single activity. An empty activityID is derived from the clock.
func (s *Scheduler) RunOnce(ctx context.Context, activityID string) (recorddomain.ActivityRecord, error) {
	if s.locker != nil && s.lockKey != "" {
		token, ok, err := s.locker.TryLock(ctx, s.lockKey, s.lockTTL)
		if err != nil {
			return recorddomain.ActivityRecord{}, err
		}
		if !ok {
			return recorddomain.ActivityRecord{}, ErrActivityInProgress
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), s.lockKey, token); err != nil {
				s.log.Warn("activity lock release failed", zap.Error(err))
			}
		}()
	}

	if activityID == "" {
		activityID = NewActivityID(s.clock.Now())
	}
	return s.runner.Run(ctx, activityID)
}

// RunForever starts an activity immediately and then once per interval
// until ctx is canceled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	nextRun := s.clock.Now()

	for {
		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			s.metrics.ObserveWatchLag(lag)
		}
		summary, err := s.RunOnce(ctx, "")
		switch {
		case errors.Is(err, ErrActivityInProgress):
			s.log.Info("activity already running elsewhere, skipping tick")
		case err != nil:
			s.log.Warn("activity run failed", zap.String("activity_id", summary.ActivityID), zap.Error(err))
		}
		nextRun = nextRun.Add(s.interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
