package report

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "framecheck:", ttl), mr
}

func TestRedisStore_SaveGet(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	sum := sampleSummary()
	require.NoError(t, store.Save(ctx, sum))

	assert.True(t, mr.Exists("framecheck:report:run-1"))
	assert.Equal(t, time.Hour, mr.TTL("framecheck:report:run-1"))

	ids, err := mr.List("framecheck:reports")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, sum.Report, got.Report)
	assert.Equal(t, sum.Input, got.Input)
	assert.True(t, sum.ScannedAt.Equal(got.ScannedAt))
}

func TestRedisStore_Latest(t *testing.T) {
	store, mr := newTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := sampleSummary()
	second := sampleSummary()
	second.RunID = "run-2"
	second.Missing = []int{}

	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.RunID)

	// an expired report is skipped
	mr.Del("framecheck:report:run-2")
	got, err = store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
}

func TestRedisStore_Errors(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	noID := sampleSummary()
	noID.RunID = ""
	assert.Error(t, store.Save(ctx, noID))
}

func TestRedisStore_Recent(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	ids, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		sum := sampleSummary()
		sum.RunID = id
		require.NoError(t, store.Save(ctx, sum))
	}

	ids, err = store.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-3", "run-2"}, ids)

	ids, err = store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}
