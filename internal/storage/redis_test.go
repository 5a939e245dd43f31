package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewRedisClient(mr.Addr())
	require.NoError(t, err)
	store := NewRedisStore(client, testLogger())
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	store, _ := setupRedisStore(t)
	exerciseStore(t, store)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, store.SaveRecord(context.Background(), "martha_green", sampleRecord("Martha Green")))

	assert.True(t, mr.Exists("npc-state:martha_green"))
	assert.Zero(t, mr.TTL("npc-state:martha_green"), "records do not expire")
}

func TestRedisStore_ListSkipsCorruptValues(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRecord(ctx, "abe", sampleRecord("Abe")))
	require.NoError(t, mr.Set("npc-state:broken", "{nope"))

	recs, err := store.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Abe", recs[0].Persona.Name)
}

func TestNewRedisClient_URL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisClient("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	assert.NoError(t, client.Ping(context.Background()).Err())

	_, err = NewRedisClient("redis://host:notaport")
	assert.Error(t, err)
}

func TestRedisStore_WaitForConnection(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()
	assert.NoError(t, store.WaitForConnection(ctx, 3, 10*time.Millisecond))

	mr.Close()
	assert.Error(t, store.WaitForConnection(ctx, 2, 10*time.Millisecond))
}
