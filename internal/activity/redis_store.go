package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// maxEntriesPerRoom caps the per-room log so abandoned rooms do
	// not accumulate unbounded history.
	maxEntriesPerRoom = 500

	logTTL = 30 * 24 * time.Hour
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed activity store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "activity:room:",
	}
}

var _ Store = (*RedisStore)(nil)

func (r *RedisStore) key(roomID int64) string {
	return fmt.Sprintf("%s%d", r.prefix, roomID)
}

func (r *RedisStore) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("activity: failed to marshal: %w", err)
	}

	key := r.key(e.RoomID)

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxEntriesPerRoom-1)
	pipe.Expire(ctx, key, logTTL)

	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n newest entries for a room, newest first.
func (r *RedisStore) Recent(ctx context.Context, roomID int64, n int64) ([]Entry, error) {
	vals, err := r.client.LRange(ctx, r.key(roomID), 0, n-1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue // skip records from older formats
		}
		entries = append(entries, e)
	}
	return entries, nil
}
