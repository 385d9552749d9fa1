package lock

import (
	"context"
	"path/filepath"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/datasync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(NewFromConfig),
)

// NewFromConfig follows the counter backend: hosts that share redis
// counters also share the activity lock, otherwise a lock file sits next
// to the counter file.
func NewFromConfig(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	if cfg.Counter.Backend != config.CounterBackendRedis {
		dir := filepath.Dir(cfg.Counter.File)
		log.Debug("activity lock uses file", zap.String("dir", dir))
		return NewFileLocker(dir)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Counter.RedisAddr),
		Password: strings.TrimSpace(cfg.Counter.RedisPassword),
		DB:       cfg.Counter.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Debug("activity lock uses redis", zap.String("addr", cfg.Counter.RedisAddr))
	return NewRedisLocker(client)
}
