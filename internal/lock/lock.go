package lock

import (
	"context"
	"errors"
	"time"
)

var ErrNotConfigured = errors.New("lock client not configured")

// Locker hands out a single holder per key. TryLock never blocks; ok is
// false when another holder owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

func checkArgs(key string, ttl time.Duration) error {
	if key == "" {
		return errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return errors.New("lock ttl must be positive")
	}
	return nil
}
