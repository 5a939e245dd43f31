package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-engine/pkg/npc"
)

const recordKeyPrefix = "npc-state:"

// RedisStore implements SessionStore with one redis string per record.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStore implements SessionStore interface
var _ SessionStore = (*RedisStore)(nil)

// NewRedisClient accepts either a redis:// URL or a host:port address.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if strings.Contains(redisURL, "://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// NewRedisStore wraps an existing client. The store closes it on Close.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Health and lifecycle methods

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStore) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Record operations

func (r *RedisStore) SaveRecord(ctx context.Context, key string, rec *npc.Record) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error("Failed to marshal session record", "key", key, "error", err)
		return fmt.Errorf("failed to marshal session record: %w", err)
	}
	if err := r.client.Set(ctx, recordKeyPrefix+key, data, 0).Err(); err != nil {
		r.logger.Error("Failed to save session record", "key", key, "error", err)
		return fmt.Errorf("failed to save session record: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadRecord(ctx context.Context, key string) (*npc.Record, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, recordKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to load session record", "key", key, "error", err)
		return nil, fmt.Errorf("failed to load session record: %w", err)
	}

	var rec npc.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		r.logger.Error("Failed to unmarshal session record", "key", key, "error", err)
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &rec, nil
}

func (r *RedisStore) DeleteRecord(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := r.client.Del(ctx, recordKeyPrefix+key).Err(); err != nil {
		r.logger.Error("Failed to delete session record", "key", key, "error", err)
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}

func (r *RedisStore) ListRecords(ctx context.Context) ([]*npc.Record, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, recordKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan session records: %w", err)
	}
	sort.Strings(keys)

	recs := make([]*npc.Record, 0, len(keys))
	for _, k := range keys {
		data, err := r.client.Get(ctx, k).Bytes()
		if err != nil {
			r.logger.Warn("Failed to read session record", "key", k, "error", err)
			continue
		}
		var rec npc.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			r.logger.Warn("Failed to parse session record", "key", k, "error", err)
			continue
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}
