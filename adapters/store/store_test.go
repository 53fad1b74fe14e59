package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newRedisStore(t *testing.T) (ports.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, s ports.Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	ok, err := s.SetNX(ctx, "k", "v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	require.NoError(t, s.Set(ctx, "k", "v3", time.Minute))
	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v3", v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "never-set"))
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestRedisStore_Contract(t *testing.T) {
	s, _ := newRedisStore(t)
	storeContract(t, s)
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := newMemoryStore(clock.Now)
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "nonce", "1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(9 * time.Second)
	_, err = s.Get(ctx, "nonce")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.Get(ctx, "nonce")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// An expired key can be claimed again.
	ok, err = s.SetNX(ctx, "nonce", "2", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_Expiry(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "nonce", "1", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, mr.TTL("nonce"))

	mr.FastForward(11 * time.Second)
	_, err = s.Get(ctx, "nonce")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRedisStore_Unavailable(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, err := s.SetNX(context.Background(), "k", "v", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)

	_, err = s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SetNX(ctx, "k", "v", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetNX_ConcurrentExactlyOnce(t *testing.T) {
	redisStore, _ := newRedisStore(t)
	stores := map[string]ports.Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := s.SetNX(context.Background(), "auth:nonce:race", "1", time.Minute)
					if err == nil && ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}
