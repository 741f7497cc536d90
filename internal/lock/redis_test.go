package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, ""), mr
}

func TestPostPublishKey(t *testing.T) {
	id := uuid.MustParse("6f1c1f9e-2b1a-4c55-9d3e-0a7a3c1e9b10")
	assert.Equal(t, "post-publish:6f1c1f9e-2b1a-4c55-9d3e-0a7a3c1e9b10", PostPublishKey(id))
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t)

	h, err := locker.TryAcquire(ctx, "post-publish:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("post-publish:1"))

	_, err = locker.TryAcquire(ctx, "post-publish:1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, locker.Release(ctx, h))
	assert.False(t, mr.Exists("post-publish:1"))

	h2, err := locker.TryAcquire(ctx, "post-publish:1", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, h.Token, h2.Token)
}

func TestRedisLocker_LeaseExpires(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t)

	_, err := locker.TryAcquire(ctx, "k", 300*time.Second)
	require.NoError(t, err)

	mr.FastForward(299 * time.Second)
	_, err = locker.TryAcquire(ctx, "k", 300*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	mr.FastForward(2 * time.Second)
	_, err = locker.TryAcquire(ctx, "k", 300*time.Second)
	assert.NoError(t, err)
}

func TestRedisLocker_ReleaseDoesNotFreeForeignLease(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestLocker(t)

	stale, err := locker.TryAcquire(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := locker.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// Старый владелец не должен снять чужую блокировку.
	require.NoError(t, locker.Release(ctx, stale))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, fresh.Token, got)
}

func TestRedisLocker_Prefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := NewRedisLocker(client, "crosspost:")
	h, err := locker.TryAcquire(ctx, "post-publish:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "crosspost:post-publish:1", h.Key)
	assert.True(t, mr.Exists("crosspost:post-publish:1"))
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	locker, _ := newTestLocker(t)

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := locker.TryAcquire(ctx, "post-publish:race", time.Minute)
			if err == nil {
				acquired.Add(1)
			} else if !errors.Is(err, ErrNotAcquired) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
}

func TestRedisLocker_ReleaseNil(t *testing.T) {
	locker, _ := newTestLocker(t)
	assert.NoError(t, locker.Release(context.Background(), nil))
}
