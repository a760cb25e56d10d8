package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logger"
)

func getTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := NewClientFromRedis(goredis.NewClient(&goredis.Options{Addr: addr}), logger.Nop())
	require.NoError(t, client.Ping(context.Background()))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", Config{Host: "cache", Port: 6380}.Addr())
}

func TestLocker_RejectsShortTTL(t *testing.T) {
	locker := NewLocker(&Client{}, "fern:test:lock:")
	called := false

	for _, ttl := range []time.Duration{0, -time.Second, 2 * time.Nanosecond} {
		err := locker.WithLock(context.Background(), "k", ttl, func(ctx context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidLockTTL, "ttl %s", ttl)
	}
	assert.False(t, called)
}

func TestExtendInterval(t *testing.T) {
	assert.Equal(t, 10*time.Minute, extendInterval(30*time.Minute))
	assert.Equal(t, time.Millisecond, extendInterval(MinLockTTL))
	assert.Equal(t, time.Millisecond, extendInterval(2*time.Nanosecond))
}

func TestLocker_Exclusive(t *testing.T) {
	client := getTestClient(t)
	ctx := context.Background()
	locker := NewLocker(client, "fern:test:lock:")
	key := uuid.NewString()

	lock, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key, time.Minute)
	assert.True(t, errors.Is(err, ErrLockNotAcquired))

	require.NoError(t, lock.Extend(ctx, 2*time.Minute))
	require.NoError(t, lock.Release(ctx))
	assert.True(t, errors.Is(lock.Release(ctx), ErrLockNotHeld))
}

func TestLocker_WithLock(t *testing.T) {
	client := getTestClient(t)
	ctx := context.Background()
	locker := NewLocker(client, "fern:test:lock:")
	key := uuid.NewString()

	ran := false
	err := locker.WithLock(ctx, key, 300*time.Millisecond, func(ctx context.Context) error {
		ran = true
		_, err := locker.Acquire(ctx, key, time.Minute)
		assert.True(t, errors.Is(err, ErrLockNotAcquired))
		// outlive the initial ttl; the lock is extended in the background
		time.Sleep(500 * time.Millisecond)
		_, err = locker.Acquire(ctx, key, time.Minute)
		assert.True(t, errors.Is(err, ErrLockNotAcquired))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	lock, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err, "lock is released after WithLock returns")
	require.NoError(t, lock.Release(ctx))
}

func TestRunKeyAllocator_Monotonic(t *testing.T) {
	client := getTestClient(t)
	ctx := context.Background()
	allocator := NewRunKeyAllocator(client, "fern:test:cdc:"+uuid.NewString())
	fixed := time.Unix(1_700_000_000, 0)
	allocator.now = func() time.Time { return fixed }

	first, err := allocator.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, fixed.Unix(), first)

	second, err := allocator.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}
