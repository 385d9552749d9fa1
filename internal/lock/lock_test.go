package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	a := NewRedisLocker(client)
	b := NewRedisLocker(client)

	token, ok, err := a.TryLock(ctx, "datasync:activity", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx, "datasync:activity", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a stale token must not release someone else's lock
	require.NoError(t, b.Release(ctx, "datasync:activity", "not-the-token"))
	assert.True(t, mr.Exists("datasync:activity"))

	require.NoError(t, a.Release(ctx, "datasync:activity", token))
	_, ok, err = b.TryLock(ctx, "datasync:activity", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	l := NewRedisLocker(client)
	_, ok, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerArgs(t *testing.T) {
	var nilLocker *RedisLocker
	_, _, err := nilLocker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)

	mr := miniredis.RunT(t)
	l := NewRedisLocker(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	_, _, err = l.TryLock(context.Background(), "", time.Second)
	assert.Error(t, err)
	_, _, err = l.TryLock(context.Background(), "k", 0)
	assert.Error(t, err)
}

func TestFileLocker(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a := NewFileLocker(dir)
	b := NewFileLocker(dir)

	token, ok, err := a.TryLock(ctx, "datasync:activity", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, a.path("datasync:activity"))

	_, ok, err = a.TryLock(ctx, "datasync:activity", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "same locker must not re-enter")

	_, ok, err = b.TryLock(ctx, "datasync:activity", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second locker must see the file lock")

	require.NoError(t, a.Release(ctx, "datasync:activity", token))

	token, ok, err = b.TryLock(ctx, "datasync:activity", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, "datasync:activity", token))
}
