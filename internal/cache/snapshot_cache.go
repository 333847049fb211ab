// Package cache serves recent room snapshots on the polling read path.
// Entries are keyed by (room code, last_update), so a stale key simply misses
// and the caller falls through to the store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chrolemist/scrumpoker/internal/model"
)

// SnapshotTTL bounds how long a polling client may be served a cached
// snapshot.
const SnapshotTTL = 2 * time.Second

// SnapshotCache caches read-path room snapshots. Get returns (nil, nil) on a
// miss.
type SnapshotCache interface {
	Get(ctx context.Context, code string, lastUpdate float64) (*model.Room, error)
	Set(ctx context.Context, code string, room *model.Room) error
}

type snapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a Redis-backed snapshot cache.
func NewSnapshotCache(client *redis.Client) SnapshotCache {
	return &snapshotCache{client: client, ttl: SnapshotTTL}
}

func snapshotKey(code string, lastUpdate float64) string {
	return fmt.Sprintf("room:%s:%s", code, strconv.FormatFloat(lastUpdate, 'f', -1, 64))
}

func (c *snapshotCache) Get(ctx context.Context, code string, lastUpdate float64) (*model.Room, error) {
	data, err := c.client.Get(ctx, snapshotKey(code, lastUpdate)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var room model.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *snapshotCache) Set(ctx context.Context, code string, room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(code, room.LastUpdate), data, c.ttl).Err()
}
