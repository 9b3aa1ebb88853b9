// Package cache keeps processed webhook event ids in Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "webhook:event:"

// Deduper remembers event ids for ttl. Entries expire on their own, so no
// purge job is needed.
type Deduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect parses url (redis://...) and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl}
}

func (d *Deduper) EventSeen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Deduper) RememberEvent(ctx context.Context, eventID string) error {
	return d.rdb.SetNX(ctx, keyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err()
}
