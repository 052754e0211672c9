package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pending_call:"

// RedisTracker keeps one dial intent per destination number. The match
// window doubles as the key TTL, so unmatched entries expire without a
// sweep job; GETDEL makes consumption atomic across process instances.
type RedisTracker struct {
	rdb    *redis.Client
	window time.Duration

	now func() time.Time
}

func NewRedisTracker(rdb *redis.Client, window time.Duration) *RedisTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisTracker{rdb: rdb, window: window, now: time.Now}
}

func (t *RedisTracker) Create(ctx context.Context, userID, toNumber string) error {
	if userID == "" || toNumber == "" {
		return errors.New("pending: user id and destination are required")
	}
	entry := Call{
		ID:        uuid.NewString(),
		UserID:    userID,
		ToNumber:  toNumber,
		CreatedAt: t.now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("pending: marshal: %w", err)
	}
	// A newer dial to the same destination replaces the older intent;
	// "most recent pending call wins" by construction.
	if err := t.rdb.Set(ctx, keyPrefix+toNumber, payload, t.window).Err(); err != nil {
		return fmt.Errorf("pending: create: %w", err)
	}
	return nil
}

func (t *RedisTracker) Consume(ctx context.Context, toNumber string) (Call, bool, error) {
	if toNumber == "" {
		return Call{}, false, nil
	}
	raw, err := t.rdb.GetDel(ctx, keyPrefix+toNumber).Result()
	if errors.Is(err, redis.Nil) {
		return Call{}, false, nil
	}
	if err != nil {
		return Call{}, false, fmt.Errorf("pending: consume: %w", err)
	}
	var entry Call
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Call{}, false, fmt.Errorf("pending: decode: %w", err)
	}
	// TTL already bounds the entry's life; the created-at check keeps the
	// window honest if the key survived a config change.
	if t.now().Sub(entry.CreatedAt) > t.window {
		return Call{}, false, nil
	}
	return entry, true, nil
}
