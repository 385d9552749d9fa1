package store

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/datasync/internal/counter/domain"
)

// RedisStore allocates with INCR so several hosts can share counters.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client not configured")
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) Next(ctx context.Context, name string) (string, error) {
	if !domain.Known(name) {
		return "", domain.Wrap(name, domain.ErrUnknownCounter)
	}
	v, err := s.client.Incr(ctx, s.prefix+name).Result()
	if err != nil {
		return "", domain.Wrap(name, err)
	}
	return domain.Format(name, v), nil
}

// Seed raises name to at least value, used when migrating from a counter file.
func (s *RedisStore) Seed(ctx context.Context, name string, value int64) error {
	if !domain.Known(name) {
		return domain.Wrap(name, domain.ErrUnknownCounter)
	}
	key := s.prefix + name
	current, err := s.client.Get(ctx, key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Wrap(name, err)
	}
	if current >= value {
		return nil
	}
	return s.client.Set(ctx, key, value, 0).Err()
}

var _ domain.Allocator = (*RedisStore)(nil)
