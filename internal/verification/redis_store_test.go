package verification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisStore(rdb)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)
	expires := time.Now().Add(time.Minute).Truncate(time.Second)

	_, err := store.Get(ctx, "ana@gmail.com")
	assert.ErrorIs(t, err, ErrCodeNotFound)
	_, err = store.IncrementAttempts(ctx, "ana@gmail.com")
	assert.ErrorIs(t, err, ErrCodeNotFound)
	assert.False(t, mr.Exists("verify:code:ana@gmail.com"), "no hash is created for a missing code")

	require.NoError(t, store.Save(ctx, "ana@gmail.com", "111111", expires))
	assert.Greater(t, mr.TTL("verify:code:ana@gmail.com"), time.Duration(0))

	n, err := store.IncrementAttempts(ctx, "ana@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.IncrementAttempts(ctx, "ana@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// saving again replaces the code and resets attempts
	require.NoError(t, store.Save(ctx, "ana@gmail.com", "222222", expires))
	entry, err := store.Get(ctx, "ana@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", entry.Code)
	assert.Zero(t, entry.Attempts)
	assert.True(t, expires.Equal(entry.ExpiresAt))

	require.NoError(t, store.Delete(ctx, "ana@gmail.com"))
	_, err = store.Get(ctx, "ana@gmail.com")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestRedisStore_ExpiredCodeStaysGone(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	require.NoError(t, store.Save(ctx, "ana@gmail.com", "111111", time.Now().Add(time.Minute)))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "ana@gmail.com")
	assert.ErrorIs(t, err, ErrCodeNotFound)

	_, err = store.IncrementAttempts(ctx, "ana@gmail.com")
	assert.ErrorIs(t, err, ErrCodeNotFound)
	assert.False(t, mr.Exists("verify:code:ana@gmail.com"))
}

func TestRedisStore_WithService(t *testing.T) {
	ctx := context.Background()
	_, store := newTestRedis(t)
	svc := NewService(store, 10*time.Minute, 2)

	code, err := svc.Issue(ctx, "Ana@Gmail.com")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Verify(ctx, "ana@gmail.com", "000000"), ErrCodeMismatch)
	require.NoError(t, svc.Verify(ctx, "ana@gmail.com", code))
	assert.ErrorIs(t, svc.Verify(ctx, "ana@gmail.com", code), ErrCodeNotFound)

	_, err = svc.Issue(ctx, "ana@gmail.com")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Verify(ctx, "ana@gmail.com", "000000"), ErrCodeMismatch)
	assert.ErrorIs(t, svc.Verify(ctx, "ana@gmail.com", "000001"), ErrTooManyAttempts)
	_, err = store.Get(ctx, "ana@gmail.com")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}
