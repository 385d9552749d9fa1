package objectstore

import (
	"context"

	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/objectstore/domain"
	"github.com/smallbiznis/datasync/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("objectstore",
	fx.Provide(NewUploader),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Metrics   metrics.Config
}

// NewUploader picks the backend from OBJECT_STORE and wraps it with throttling and retries.
func NewUploader(p Params) (domain.Uploader, error) {
	cfg := p.Config.ObjectStore

	var base domain.Uploader
	switch cfg.Backend {
	case config.ObjectStoreS3:
		store, err := NewMinioStore(cfg)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				// Bucket provisioning happens outside this service.
				if err := store.CheckBucket(ctx); err != nil {
					p.Log.Warn("object store bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
				}
				return nil
			},
		})
		base = store
	default:
		store, err := NewLocalStore(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		base = store
	}

	p.Log.Info("object store ready",
		zap.String("backend", cfg.Backend),
		zap.String("prefix", cfg.Prefix),
		zap.Float64("rate_per_sec", p.Config.Upload.RatePerSecond),
		zap.Int("max_attempts", p.Config.Upload.MaxAttempts),
	)
	return NewResilient(base, p.Config.Upload, metrics.PipelineWithConfig(p.Metrics), p.Log), nil
}
