package pipeline

import (
	"context"
	"os"
	"time"

	counterdomain "github.com/smallbiznis/datasync/internal/counter/domain"
	"github.com/smallbiznis/datasync/internal/objectstore"
	"github.com/smallbiznis/datasync/internal/observability/logger"
	"github.com/smallbiznis/datasync/internal/observability/metrics"
	"github.com/smallbiznis/datasync/internal/observability/tracing"
	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/smallbiznis/datasync/internal/staging"
	"go.uber.org/zap"
)

// processPair runs one pair through every stage. It never returns an
// error: the first failing stage is recorded on the outcome, the pair is
// written to history as Failed and the activity moves on.
func (r *Runner) processPair(ctx context.Context, activityLog *zap.Logger, activityID string, pair staging.FilePair) (out PairOutcome) {
	started := time.Now()
	ctx = logger.WithPairName(ctx, pair.Name)
	ctx, span := tracing.StartPairSpan(ctx, activityID, pair.Name)

	out = PairOutcome{Pair: pair, Status: recorddomain.PairPassed}
	j := newJournal(logger.WithPair(activityLog, pair.Name, ""))
	archived := false

	defer func() {
		out.Duration = time.Since(started)
		r.metrics.ObservePairDuration(out.Duration)
		tracing.EndSpan(span, out.Err)
	}()

	dhrID, err := r.alloc.Next(ctx, counterdomain.DHRID)
	if err != nil {
		out.fail(metrics.StageAllocate, err)
		r.finishPair(ctx, j, activityID, &out, archived, started)
		return out
	}
	out.DHRID = dhrID
	j.log = j.log.With(zap.String("dhr_id", dhrID))
	j.info("pair picked up", zap.String("format", string(pair.Format)))

	archived = r.runStages(ctx, j, activityID, &out)
	r.finishPair(ctx, j, activityID, &out, archived, started)
	return out
}

// runStages reports whether the pair's files already left staging.
func (r *Runner) runStages(ctx context.Context, j *journal, activityID string, out *PairOutcome) bool {
	pair := out.Pair

	if err := r.validator.Validate(ctx, pair); err != nil {
		out.fail(metrics.StageValidate, err)
		return false
	}
	j.info("validation passed")

	rec, err := r.transformer.Transform(ctx, pair, activityID)
	if err != nil {
		out.fail(metrics.StageTransform, err)
		return false
	}
	rec.DHRID = out.DHRID
	j.info("record transformed", zap.String("arc_doc_id", rec.ArcDocID()), zap.String("offset", rec.Offset))

	out.DataSize = fileSize(pair.DataPath)
	out.BinarySize = fileSize(pair.BinaryPath)

	key := objectstore.Key(r.objectPrefix, rec.ArcDocID())
	locator, err := r.uploader.Upload(ctx, pair.BinaryPath, key)
	if err != nil {
		out.fail(metrics.StageUpload, err)
		return false
	}
	r.metrics.AddUploadBytes(out.BinarySize)
	j.info("binary uploaded", zap.String("locator", locator))

	if err := r.repo.Append(ctx, recorddomain.StorageLogEntry{
		Timestamp:  r.clock.Now(),
		ActivityID: activityID,
		DHRID:      out.DHRID,
		PairName:   pair.Name,
		Locator:    locator,
	}); err != nil {
		out.fail(metrics.StageAudit, err)
		return false
	}

	if err := r.repo.InsertRecord(ctx, rec.WithLocator(locator)); err != nil {
		out.fail(metrics.StagePersist, err)
		return false
	}
	j.info("record persisted")

	if err := r.archiver.Archive(ctx, pair, staging.OutcomePassed); err != nil {
		out.fail(metrics.StageArchive, err)
		return false
	}
	j.info("pair archived")

	if err := r.appendHistory(ctx, activityID, *out, recorddomain.PairPassed); err != nil {
		out.fail(metrics.StageAudit, err)
		return true
	}
	return true
}

// finishPair writes the Failed history for failed pairs and the event log
// for every pair. Errors here are logged; the outcome is already decided.
func (r *Runner) finishPair(ctx context.Context, j *journal, activityID string, out *PairOutcome, archived bool, started time.Time) {
	if out.Err != nil {
		r.metrics.IncStageError(out.Stage, out.Err)
		j.error("pair failed", zap.String("stage", out.Stage), zap.Error(out.Err))

		if !archived {
			if err := r.archiver.Archive(ctx, out.Pair, staging.OutcomeFailed); err != nil {
				j.error("quarantine failed", zap.Error(err))
			}
		}
		if err := r.appendHistory(ctx, activityID, *out, recorddomain.PairFailed); err != nil {
			j.log.Error("failed pair history not written", zap.Error(err))
		}
		r.metrics.IncPairProcessed(metrics.PairStatusFailed)
	} else {
		r.metrics.IncPairProcessed(metrics.PairStatusPassed)
	}

	j.info("pair finished",
		zap.String("status", string(out.Status)),
		zap.Duration("processing_time", time.Since(started)),
		zap.Int64("data_size", out.DataSize),
		zap.Int64("binary_size", out.BinarySize),
	)

	eventID, err := r.alloc.Next(ctx, counterdomain.EventID)
	if err != nil {
		j.log.Error("event log id not allocated", zap.Error(err))
		return
	}
	if err := r.repo.Append(ctx, recorddomain.EventLogEntry{
		EventsID:   eventID,
		DHRID:      out.DHRID,
		PairName:   out.Pair.Name,
		Log:        j.Lines(),
		Timestamp:  r.clock.Now(),
		ActivityID: activityID,
	}); err != nil {
		j.log.Error("event log not written", zap.Error(err))
	}
}

func (r *Runner) appendHistory(ctx context.Context, activityID string, out PairOutcome, status recorddomain.PairStatus) error {
	statusID, err := r.alloc.Next(ctx, counterdomain.StatusID)
	if err != nil {
		return err
	}
	return r.repo.Append(ctx, recorddomain.PairHistoryEntry{
		StatusID:   statusID,
		DHRID:      out.DHRID,
		ActivityID: activityID,
		PairName:   out.Pair.Name,
		Status:     status,
		Timestamp:  r.clock.Now(),
	})
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
