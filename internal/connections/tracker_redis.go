package connections

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for connection records.
	connectionKeyPrefix = "feed:connection:"
	// Connections expire unless refreshed, so a crashed instance does not
	// leave ghost entries behind.
	connectionTTL = 2 * time.Minute
)

// RedisTracker shares feed presence across service instances.
type RedisTracker struct {
	client *redis.Client
}

// NewRedisTracker constructs a Redis-backed connection tracker.
func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func (t *RedisTracker) Connected(ctx context.Context, conn Connection) error {
	payload, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}
	key := connectionKeyPrefix + conn.ClientID
	if err := t.client.Set(ctx, key, payload, connectionTTL).Err(); err != nil {
		return fmt.Errorf("record connection: %w", err)
	}
	return nil
}

// Refresh extends the TTL of a live connection record.
func (t *RedisTracker) Refresh(ctx context.Context, clientID string) error {
	key := connectionKeyPrefix + clientID
	if err := t.client.Expire(ctx, key, connectionTTL).Err(); err != nil {
		return fmt.Errorf("refresh connection: %w", err)
	}
	return nil
}

func (t *RedisTracker) Disconnected(ctx context.Context, clientID string) error {
	key := connectionKeyPrefix + clientID
	if err := t.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	return nil
}

func (t *RedisTracker) List(ctx context.Context) ([]Connection, error) {
	var (
		cursor uint64
		conns  []Connection
	)
	for {
		keys, next, err := t.client.Scan(ctx, cursor, connectionKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan connections: %w", err)
		}
		for _, key := range keys {
			payload, err := t.client.Get(ctx, key).Bytes()
			if err == redis.Nil {
				continue // expired between scan and get
			}
			if err != nil {
				return nil, fmt.Errorf("load connection %s: %w", key, err)
			}
			var conn Connection
			if err := json.Unmarshal(payload, &conn); err != nil {
				return nil, fmt.Errorf("unmarshal connection %s: %w", key, err)
			}
			conns = append(conns, conn)
		}
		if next == 0 {
			sort.Slice(conns, func(i, j int) bool { return conns[i].ClientID < conns[j].ClientID })
			return conns, nil
		}
		cursor = next
	}
}
