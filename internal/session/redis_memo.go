// Package session keeps per-view resolution state in Redis so the outcomes
// of one rendering context survive across API instances.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"grimoire/internal/resolve"
)

const (
	defaultPrefix = "grimoire:view:"
	defaultTTL    = 30 * time.Minute
)

// RedisMemo stores resolved outcomes in one Redis hash per view. The hash
// expires ttl after its last write.
type RedisMemo struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMemo connects to redisURL and verifies the connection.
func NewRedisMemo(redisURL string, ttl time.Duration) (*RedisMemo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisMemoWithClient(client, ttl), nil
}

// NewRedisMemoWithClient creates a memo from an existing Redis client.
func NewRedisMemoWithClient(client *redis.Client, ttl time.Duration) *RedisMemo {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisMemo{
		client: client,
		prefix: defaultPrefix,
		ttl:    ttl,
	}
}

func (m *RedisMemo) key(viewID string) string {
	return m.prefix + viewID
}

// ForView returns the resolve.Memo scoped to one view.
func (m *RedisMemo) ForView(viewID string) resolve.Memo {
	return &viewMemo{memo: m, viewID: viewID}
}

// Touch extends the lifetime of a view's outcomes without writing any.
func (m *RedisMemo) Touch(ctx context.Context, viewID string) error {
	if err := m.client.Expire(ctx, m.key(viewID), m.ttl).Err(); err != nil {
		return fmt.Errorf("touch view %s: %w", viewID, err)
	}
	return nil
}

// DropView deletes every outcome recorded for viewID.
func (m *RedisMemo) DropView(ctx context.Context, viewID string) error {
	if err := m.client.Del(ctx, m.key(viewID)).Err(); err != nil {
		return fmt.Errorf("drop view %s: %w", viewID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (m *RedisMemo) Close() error {
	return m.client.Close()
}

// Ping checks if Redis is reachable.
func (m *RedisMemo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

type viewMemo struct {
	memo   *RedisMemo
	viewID string
}

func (v *viewMemo) Load(ctx context.Context, key string) (resolve.Outcome, bool, error) {
	raw, err := v.memo.client.HGet(ctx, v.memo.key(v.viewID), key).Result()
	if err == redis.Nil {
		return resolve.Outcome{}, false, nil
	}
	if err != nil {
		return resolve.Outcome{}, false, fmt.Errorf("load outcome %s: %w", key, err)
	}

	var o resolve.Outcome
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return resolve.Outcome{}, false, fmt.Errorf("unmarshal outcome %s: %w", key, err)
	}
	return o, true, nil
}

func (v *viewMemo) Store(ctx context.Context, key string, o resolve.Outcome) error {
	if o.State == resolve.StatePending {
		return nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome %s: %w", key, err)
	}

	hash := v.memo.key(v.viewID)
	pipe := v.memo.client.TxPipeline()
	pipe.HSet(ctx, hash, key, data)
	pipe.Expire(ctx, hash, v.memo.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store outcome %s: %w", key, err)
	}
	return nil
}
