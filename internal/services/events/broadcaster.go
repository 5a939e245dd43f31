package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSessionOpened EventType = "session.opened"
	EventTypeNotification  EventType = "session.notification"
	EventTypeSessionClosed EventType = "session.closed"
)

// Event is what travels over a session channel.
type Event struct {
	Type         EventType          `json:"type"`
	SessionID    string             `json:"session_id"`
	Notification *chat.Notification `json:"notification,omitempty"`
}

// Publisher is what a session needs to mirror its traffic.
type Publisher interface {
	PublishSessionOpened(ctx context.Context, sessionID string) error
	PublishNotification(ctx context.Context, sessionID string, n chat.Notification) error
	PublishSessionClosed(ctx context.Context, sessionID string) error
}

// Broadcaster publishes session events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel returns the pub/sub channel name for a session.
func Channel(sessionID string) string {
	return fmt.Sprintf("npc-events:%s", sessionID)
}

func (b *Broadcaster) PublishSessionOpened(ctx context.Context, sessionID string) error {
	return b.publish(ctx, Event{Type: EventTypeSessionOpened, SessionID: sessionID})
}

// PublishNotification mirrors one notification sent to the socket client.
func (b *Broadcaster) PublishNotification(ctx context.Context, sessionID string, n chat.Notification) error {
	return b.publish(ctx, Event{Type: EventTypeNotification, SessionID: sessionID, Notification: &n})
}

func (b *Broadcaster) PublishSessionClosed(ctx context.Context, sessionID string) error {
	return b.publish(ctx, Event{Type: EventTypeSessionClosed, SessionID: sessionID})
}

// Subscribe opens a subscription to one session's channel. The caller
// closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(sessionID))
}

func (b *Broadcaster) publish(ctx context.Context, event Event) error {
	channel := Channel(event.SessionID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)
	return nil
}

// NopPublisher drops every event. Used when redis is not configured.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

func (NopPublisher) PublishSessionOpened(context.Context, string) error { return nil }

func (NopPublisher) PublishNotification(context.Context, string, chat.Notification) error {
	return nil
}

func (NopPublisher) PublishSessionClosed(context.Context, string) error { return nil }
