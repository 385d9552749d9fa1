package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/smallbiznis/datasync/internal/clock"
	"github.com/smallbiznis/datasync/internal/config"
	counterdomain "github.com/smallbiznis/datasync/internal/counter/domain"
	notifydomain "github.com/smallbiznis/datasync/internal/notify/domain"
	objectdomain "github.com/smallbiznis/datasync/internal/objectstore/domain"
	"github.com/smallbiznis/datasync/internal/observability/logger"
	"github.com/smallbiznis/datasync/internal/observability/metrics"
	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/smallbiznis/datasync/internal/staging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ActivityIDLayout formats the default activity id from the run start time.
const ActivityIDLayout = "2006-01-02_15-04-05"

var ErrPairPanic = errors.New("pair_panic")

type Validator interface {
	Validate(ctx context.Context, pair staging.FilePair) error
}

type Transformer interface {
	Transform(ctx context.Context, pair staging.FilePair, activityID string) (recorddomain.CanonicalRecord, error)
}

type Archiver interface {
	Archive(ctx context.Context, pair staging.FilePair, outcome staging.Outcome) error
}

type Params struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	Metrics     metrics.Config
	Allocator   counterdomain.Allocator
	Validator   Validator
	Transformer Transformer
	Uploader    objectdomain.Uploader
	Repository  recorddomain.Repository
	Archiver    Archiver
	Notifier    notifydomain.Notifier
}

// Runner executes one activity over the staging directory.
type Runner struct {
	pickupDir    string
	objectPrefix string
	logDir       string
	workers      int

	log     *zap.Logger
	clock   clock.Clock
	metrics *metrics.PipelineMetrics

	alloc       counterdomain.Allocator
	validator   Validator
	transformer Transformer
	uploader    objectdomain.Uploader
	repo        recorddomain.Repository
	archiver    Archiver
	notifier    notifydomain.Notifier
}

func NewRunner(p Params) *Runner {
	workers := p.Config.Pipeline.Workers
	if workers <= 0 {
		workers = 1
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = notifydomain.NoOpNotifier{}
	}
	return &Runner{
		pickupDir:    p.Config.Staging.PickupDir,
		objectPrefix: p.Config.ObjectStore.Prefix,
		logDir:       p.Config.LogDir,
		workers:      workers,
		log:          p.Log.Named("pipeline"),
		clock:        p.Clock,
		metrics:      metrics.PipelineWithConfig(p.Metrics),
		alloc:        p.Allocator,
		validator:    p.Validator,
		transformer:  p.Transformer,
		uploader:     p.Uploader,
		repo:         p.Repository,
		archiver:     p.Archiver,
		notifier:     notifier,
	}
}

// NewActivityID derives the default activity id from a start time.
func NewActivityID(t time.Time) string {
	return t.Format(ActivityIDLayout)
}

// Run processes every pair currently in the staging directory and returns
// the persisted summary. The returned error is non-nil when the activity
// failed or its summary could not be stored; pair failures are only counted.
func (r *Runner) Run(ctx context.Context, activityID string) (recorddomain.ActivityRecord, error) {
	start := r.clock.Now()
	if activityID == "" {
		activityID = NewActivityID(start)
	}
	ctx = logger.WithActivityID(ctx, activityID)

	log, closeLog, err := logger.ForActivity(r.log, r.logDir, activityID)
	if err != nil {
		r.log.Warn("activity log file unavailable", zap.String("activity_id", activityID), zap.Error(err))
		log, closeLog = logger.WithActivity(r.log, activityID), func() error { return nil }
	}
	defer func() { _ = closeLog() }()

	summary := recorddomain.ActivityRecord{ActivityID: activityID, StartTime: start}
	log.Info("activity started", zap.String("pickup_dir", r.pickupDir), zap.Int("workers", r.workers))

	scanner, err := staging.Open(r.pickupDir)
	if err != nil {
		return r.finish(ctx, log, summary, err)
	}
	defer scanner.Close()

	fatal := r.process(ctx, log, activityID, scanner, &summary)
	if fatal == nil {
		fatal = scanner.Err()
	}
	if fatal == nil && ctx.Err() != nil {
		summary.Error = fmt.Sprintf("interrupted: %v", ctx.Err())
		log.Warn("activity interrupted, remaining pairs left in staging", zap.Error(ctx.Err()))
	}
	return r.finish(ctx, log, summary, fatal)
}

// process fans pairs out to at most r.workers goroutines. Outcomes are
// folded into summary by a single collector goroutine. Once ctx is done no
// further pairs are pulled; in-flight pairs finish on a detached context.
func (r *Runner) process(ctx context.Context, log *zap.Logger, activityID string, scanner *staging.Scanner, summary *recorddomain.ActivityRecord) error {
	outcomes := make(chan PairOutcome)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for o := range outcomes {
			fold(summary, o)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	pairCtx := context.WithoutCancel(ctx)

	for gctx.Err() == nil {
		pair, ok := scanner.Next()
		if !ok {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("%w: %s: %v", ErrPairPanic, pair.Name, rec)
					log.Error("pair worker panicked",
						zap.String("pair", pair.Name),
						zap.Any("panic", rec),
						zap.ByteString("stack", debug.Stack()),
					)
					outcomes <- PairOutcome{Pair: pair, Status: recorddomain.PairFailed, Err: err}
				}
			}()
			outcomes <- r.processPair(pairCtx, log, activityID, pair)
			return nil
		})
	}

	err := g.Wait()
	close(outcomes)
	<-collected
	return err
}

func (r *Runner) finish(ctx context.Context, log *zap.Logger, summary recorddomain.ActivityRecord, fatal error) (recorddomain.ActivityRecord, error) {
	summary.EndTime = r.clock.Now()
	summary.ElapsedMS = summary.Elapsed().Milliseconds()
	summary.Status = recorddomain.ActivityCompleted
	if fatal != nil {
		summary.Status = recorddomain.ActivityFailed
		summary.Error = fatal.Error()
	}

	fields := []zap.Field{
		zap.String("status", string(summary.Status)),
		zap.Int("total_files", summary.TotalFiles),
		zap.Int("passed_files", summary.PassedFiles),
		zap.Int("failed_files", summary.FailedFiles),
		zap.Int64("total_xml_size", summary.TotalXMLSize),
		zap.Int64("total_pdf_size", summary.TotalPDFSize),
		zap.Duration("elapsed", summary.Elapsed()),
	}
	if fatal != nil {
		log.Error("activity failed", append(fields, zap.Error(fatal))...)
	} else {
		log.Info("activity completed", fields...)
	}

	r.metrics.IncActivityRun(string(summary.Status))
	r.metrics.ObserveActivityDuration(summary.Elapsed())

	// The summary and notification go out even when ctx was canceled.
	detached := context.WithoutCancel(ctx)
	persistErr := r.repo.Append(detached, summary)
	if persistErr != nil {
		r.metrics.IncStageError(metrics.StageAudit, persistErr)
		log.Error("activity summary not persisted", zap.Error(persistErr))
	}
	if err := r.notifier.Notify(detached, summary.ActivityID, summary, summary.Status); err != nil {
		log.Warn("activity notification failed", zap.Error(err))
	}

	return summary, errors.Join(fatal, persistErr)
}
