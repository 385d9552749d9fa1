package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/objectstore/domain"
	"github.com/smallbiznis/datasync/internal/observability/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Resilient throttles uploads to what the object store tolerates and retries
// transient failures with exponential backoff.
type Resilient struct {
	next        domain.Uploader
	limiter     *rate.Limiter
	maxAttempts uint
	timeout     time.Duration
	backoff     func() backoff.BackOff
	metrics     *metrics.PipelineMetrics
	log         *zap.Logger
}

func NewResilient(next domain.Uploader, cfg config.UploadConfig, m *metrics.PipelineMetrics, log *zap.Logger) *Resilient {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resilient{
		next:        next,
		limiter:     rate.NewLimiter(limit, burst),
		maxAttempts: uint(attempts),
		timeout:     cfg.Timeout,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		metrics: m,
		log:     log.Named("uploader"),
	}
}

func (r *Resilient) Upload(ctx context.Context, path, key string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit: %w", domain.ErrUpload, err)
	}

	attempt := 0
	op := func() (string, error) {
		attempt++
		attemptCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		locator, err := r.next.Upload(attemptCtx, path, key)
		if err == nil {
			return locator, nil
		}
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, context.Canceled) || isPermanent(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	locator, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.backoff()),
		backoff.WithMaxTries(r.maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.metrics.IncUploadRetry()
			r.log.Warn("upload attempt failed, retrying",
				zap.String("key", key),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		if errors.Is(err, domain.ErrUpload) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrUpload, err)
	}
	return locator, nil
}

var _ domain.Uploader = (*Resilient)(nil)
