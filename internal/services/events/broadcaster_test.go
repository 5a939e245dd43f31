package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

func setupBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcaster(client, logger)
}

func TestBroadcaster_PublishNotification(t *testing.T) {
	b := setupBroadcaster(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := b.Subscribe(ctx, "abc")
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "subscription confirmation")

	require.NoError(t, b.PublishNotification(ctx, "abc", chat.DialogueNotification("Hi!", "wave")))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "npc-events:abc", msg.Channel)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, EventTypeNotification, event.Type)
	assert.Equal(t, "abc", event.SessionID)
	require.NotNil(t, event.Notification)
	assert.Equal(t, chat.NotificationDialogue, event.Notification.Type)
	assert.Equal(t, "Hi!", event.Notification.Message)
}

func TestBroadcaster_ChannelsAreScopedPerSession(t *testing.T) {
	b := setupBroadcaster(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := b.Subscribe(ctx, "one")
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.PublishSessionOpened(ctx, "two"))
	require.NoError(t, b.PublishSessionClosed(ctx, "one"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var event Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, EventTypeSessionClosed, event.Type)
	assert.Equal(t, "one", event.SessionID)
}

func TestBroadcaster_PublishFailsWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	b := NewBroadcaster(client, logger)

	mr.Close()
	err = b.PublishNotification(context.Background(), "x", chat.ErrorNotification("boom"))
	assert.Error(t, err)
}
