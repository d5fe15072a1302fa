package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/linebot-assistant/pkg/models"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *TranscriptStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewTranscriptStore(client, time.Hour)
}

func TestTranscriptStoreRoundTrip(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, got)

	turns := models.Transcript{
		{Role: models.RoleUser, Content: "Hello"},
		{Role: models.RoleModel, Content: "Hi"},
	}
	require.NoError(t, store.Put(ctx, "U1", turns))
	assert.True(t, mr.Exists("chat/U1"))
	assert.Equal(t, time.Hour, mr.TTL("chat/U1"))

	got, err = store.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, turns, got)
}

func TestTranscriptStoreExpires(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "U1", models.Transcript{{Role: models.RoleUser, Content: "x"}}))
	mr.FastForward(2 * time.Hour)

	got, err := store.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTranscriptStoreDeleteIsolatesUsers(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "U1", models.Transcript{{Role: models.RoleUser, Content: "a"}}))
	require.NoError(t, store.Put(ctx, "U2", models.Transcript{{Role: models.RoleUser, Content: "b"}}))
	require.NoError(t, store.Delete(ctx, "U1"))

	assert.False(t, mr.Exists("chat/U1"))
	assert.True(t, mr.Exists("chat/U2"))
}

func TestTranscriptStoreCorruptValue(t *testing.T) {
	mr, store := newTestStore(t)
	require.NoError(t, mr.Set("chat/U1", "not json"))

	_, err := store.Get(context.Background(), "U1")
	assert.Error(t, err)
}
