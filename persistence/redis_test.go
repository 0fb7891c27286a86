package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisHistoryStore) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisHistoryStoreWithClient(client, "test:")
	return mr, store
}

func TestRedisHistoryStore_SaveAndGet(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	saved := finishedHistory("e1", "wf", time.Minute)
	require.NoError(t, store.Save(ctx, saved))

	got, err := store.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ExecutionID)
	assert.Equal(t, "wf", got.WorkflowID)
	assert.Equal(t, saved.Status, got.Status)

	_, err = store.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisHistoryStore_InvalidInput(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()
	defer store.Close()

	require.ErrorIs(t, store.Save(context.Background(), nil), ErrInvalidInput)
}

func TestRedisHistoryStore_ListByWorkflow(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, finishedHistory("old", "wf", 3*time.Hour)))
	require.NoError(t, store.Save(ctx, finishedHistory("mid", "wf", 2*time.Hour)))
	require.NoError(t, store.Save(ctx, finishedHistory("new", "wf", time.Hour)))
	require.NoError(t, store.Save(ctx, finishedHistory("other", "wf2", time.Hour)))

	list, err := store.ListByWorkflow(ctx, "wf", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ExecutionID, "newest first")
	assert.Equal(t, "mid", list[1].ExecutionID)
	assert.Equal(t, "old", list[2].ExecutionID)

	limited, err := store.ListByWorkflow(ctx, "wf", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].ExecutionID)
}

func TestRedisHistoryStore_SaveIsIdempotentPerExecution(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	h := finishedHistory("e1", "wf", time.Hour)
	require.NoError(t, store.Save(ctx, h))
	require.NoError(t, store.Save(ctx, h))

	list, err := store.ListByWorkflow(ctx, "wf", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1, "re-saving must not duplicate index entries")
}

func TestRedisHistoryStore_Delete(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, finishedHistory("e1", "wf", time.Minute)))
	require.NoError(t, store.Delete(ctx, "e1"))

	_, err := store.Get(ctx, "e1")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, "e1"), ErrNotFound)

	list, err := store.ListByWorkflow(ctx, "wf", 0)
	require.NoError(t, err)
	assert.Empty(t, list, "index entries removed with the history")
}

func TestRedisHistoryStore_Cleanup(t *testing.T) {
	mr, store := setupRedisStore(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, finishedHistory("stale", "wf", 48*time.Hour)))
	require.NoError(t, store.Save(ctx, finishedHistory("fresh", "wf", time.Minute)))

	removed, err := store.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, "stale")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "fresh")
	require.NoError(t, err)
}
