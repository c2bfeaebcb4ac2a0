package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestRedisBackend(t *testing.T) *RedisBackend {
	t.Helper()
	mr := miniredis.RunT(t)
	backend, err := NewRedisBackend("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestRedisBackendSetGetRoundTrip(t *testing.T) {
	backend := newTestRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "character_char-1:10:", []byte("payload"), time.Minute))

	value, ok, err := backend.Get(ctx, "character_char-1:10:")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), value)
}

func TestRedisBackendGetMissingKey(t *testing.T) {
	backend := newTestRedisBackend(t)

	_, ok, err := backend.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisBackendDeleteAndScan(t *testing.T) {
	backend := newTestRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "character_char-1:10:", []byte("a"), time.Minute))
	require.NoError(t, backend.Set(ctx, "character_char-2:10:", []byte("b"), time.Minute))

	keys, err := backend.Scan(ctx, "character_")
	require.NoError(t, err)
	require.Len(t, keys, 2)

	require.NoError(t, backend.Delete(ctx, "character_char-1:10:"))
	_, ok, err := backend.Get(ctx, "character_char-1:10:")
	require.NoError(t, err)
	require.False(t, ok)
}
