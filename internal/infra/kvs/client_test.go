//go:build unit

package kvs_test

import (
	"context"
	"testing"
	"time"

	"ledger-gateway/internal/infra/kvs"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*kvs.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return kvs.NewFromRedis(rdb), mr
}

func TestStringOperations(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		_, err := client.Get(ctx, "nope")
		require.ErrorIs(t, err, kvs.ErrNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "k", "v"))
		val, err := client.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", val)
	})

	t.Run("set with expiry", func(t *testing.T) {
		require.NoError(t, client.SetEx(ctx, "ephemeral", "v", time.Hour))
		assert.Equal(t, time.Hour, mr.TTL("ephemeral"))

		mr.FastForward(2 * time.Hour)
		_, err := client.Get(ctx, "ephemeral")
		require.ErrorIs(t, err, kvs.ErrNotFound)
	})

	t.Run("set if absent", func(t *testing.T) {
		ok, err := client.SetNX(ctx, "once", "first", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = client.SetNX(ctx, "once", "second", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		val, err := client.Get(ctx, "once")
		require.NoError(t, err)
		assert.Equal(t, "first", val)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "gone", "v"))
		require.NoError(t, client.Del(ctx, "gone"))
		_, err := client.Get(ctx, "gone")
		require.ErrorIs(t, err, kvs.ErrNotFound)
	})
}

func TestCounterOperations(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	count, err := client.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = client.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, client.Expire(ctx, "counter", time.Minute))
	mr.FastForward(2 * time.Minute)

	count, err = client.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expired counter restarts the window")
}

func TestListOperations(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	t.Run("pop from empty list", func(t *testing.T) {
		_, err := client.RPop(ctx, "empty")
		require.ErrorIs(t, err, kvs.ErrNotFound)
	})

	t.Run("lpush rpop keeps FIFO order", func(t *testing.T) {
		require.NoError(t, client.LPush(ctx, "list", "a"))
		require.NoError(t, client.LPush(ctx, "list", "b"))
		require.NoError(t, client.LPush(ctx, "list", "c"))

		length, err := client.LLen(ctx, "list")
		require.NoError(t, err)
		assert.Equal(t, int64(3), length)

		for _, want := range []string{"a", "b", "c"} {
			got, err := client.RPop(ctx, "list")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("lrem removes a specific member", func(t *testing.T) {
		require.NoError(t, client.LPush(ctx, "rem", "x", "y", "x"))

		removed, err := client.LRem(ctx, "rem", 1, "x")
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		members, err := client.LRange(ctx, "rem", 0, -1)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})
}

func TestSortedSetOperations(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.ZAdd(ctx, "sched", 100, "early"))
	require.NoError(t, client.ZAdd(ctx, "sched", 200, "late"))

	card, err := client.ZCard(ctx, "sched")
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)

	due, err := client.ZRangeByScore(ctx, "sched", 0, 150)
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, due)

	removed, err := client.ZRem(ctx, "sched", "early")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	card, err = client.ZCard(ctx, "sched")
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)
}

func TestKeys(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "tx:a", "1"))
	require.NoError(t, client.Set(ctx, "tx:b", "2"))
	require.NoError(t, client.Set(ctx, "other:c", "3"))

	keys, err := client.Keys(ctx, "tx:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tx:a", "tx:b"}, keys)
}

func TestLock(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := kvs.AcquireLock(ctx, client, "replay", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kvs.AcquireLock(ctx, client, "replay", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire")

	require.NoError(t, kvs.ReleaseLock(ctx, client, "replay"))

	ok, err = kvs.AcquireLock(ctx, client, "replay", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// TTL bounds a holder that dies without releasing
	mr.FastForward(2 * time.Minute)
	ok, err = kvs.AcquireLock(ctx, client, "replay", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
