package keys

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBackend(t *testing.T, mr *miniredis.Miniredis) *RedisBackend {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBackend(client, "gophauth:keys:")
}

func TestRedisBackend_GetPut(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	b := newRedisBackend(t, mr)

	_, err := b.Get(ctx, "signing-private.pem")
	require.ErrorIs(t, err, common.ErrKeyNotFound)

	require.NoError(t, b.Put(ctx, "signing-private.pem", []byte("pem")))
	got, err := b.Get(ctx, "signing-private.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte("pem"), got)

	raw, err := mr.Get("gophauth:keys:signing-private.pem")
	require.NoError(t, err)
	assert.Equal(t, "pem", raw)
}

func TestRedisBackend_LockIsExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newRedisBackend(t, mr)
	b := newRedisBackend(t, mr)

	unlock, err := a.Lock(context.Background(), "signing")
	require.NoError(t, err)
	assert.True(t, mr.Exists("gophauth:keys:signing.lock"))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = b.Lock(ctx, "signing")
	require.ErrorIs(t, err, common.ErrKeyLockTimeout)

	require.NoError(t, unlock())
	assert.False(t, mr.Exists("gophauth:keys:signing.lock"))
}

func TestRedisBackend_UnlockKeepsForeignLock(t *testing.T) {
	mr := miniredis.RunT(t)
	b := newRedisBackend(t, mr)

	unlock, err := b.Lock(context.Background(), "signing")
	require.NoError(t, err)

	// The lock expired and someone else took it.
	require.NoError(t, mr.Set("gophauth:keys:signing.lock", "someone-else"))

	require.NoError(t, unlock())
	got, err := mr.Get("gophauth:keys:signing.lock")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisBackend_ConcurrentReplicas(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	const replicas = 4
	pairs := make([]*KeyPair, replicas)
	errs := make([]error, replicas)

	var wg sync.WaitGroup
	for i := 0; i < replicas; i++ {
		b := newRedisBackend(t, mr)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pairs[i], errs[i] = newTestProvider(b, Config{LockTimeout: 30 * time.Second}).EnsureKeys(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < replicas; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, pairs[0].Fingerprint, pairs[i].Fingerprint)
	}
}
