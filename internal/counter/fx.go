package counter

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/counter/domain"
	"github.com/smallbiznis/datasync/internal/counter/store"
	"github.com/smallbiznis/datasync/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("counter",
	fx.Provide(NewAllocator),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Metrics   metrics.Config
}

// NewAllocator selects the counter backend from COUNTER_BACKEND.
func NewAllocator(p Params) (domain.Allocator, error) {
	cfg := p.Config.Counter
	m := metrics.PipelineWithConfig(p.Metrics)

	fileStore, err := store.NewFileStore(cfg.File)
	if err != nil {
		return nil, err
	}
	if cfg.Backend != config.CounterBackendRedis {
		p.Log.Info("counter store ready", zap.String("backend", cfg.Backend), zap.String("file", fileStore.Path()))
		return store.Instrumented(fileStore, m), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.RedisAddr),
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	redisStore, err := store.NewRedisStore(client, cfg.KeyPrefix)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return err
			}
			return seedFromFile(ctx, fileStore, redisStore, p.Log)
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	p.Log.Info("counter store ready", zap.String("backend", cfg.Backend), zap.String("addr", cfg.RedisAddr))
	return store.Instrumented(redisStore, m), nil
}

// seedFromFile carries values from an existing counter file into redis so a
// backend switch never hands out an id twice.
func seedFromFile(ctx context.Context, file *store.FileStore, rs *store.RedisStore, log *zap.Logger) error {
	snapshot, err := file.Snapshot()
	if err != nil {
		log.Warn("counter file unreadable, skipping redis seed", zap.Error(err))
		return nil
	}
	for name, value := range snapshot {
		if value == 0 {
			continue
		}
		if err := rs.Seed(ctx, name, value); err != nil {
			return err
		}
	}
	return nil
}
