package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Chrolemist/scrumpoker/internal/model"
)

// MemorySnapshotCache is the in-process fallback used when no Redis address is
// configured. Expired entries are swept opportunistically on writes.
type MemorySnapshotCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// NewMemorySnapshotCache creates an empty in-process snapshot cache.
func NewMemorySnapshotCache() *MemorySnapshotCache {
	return &MemorySnapshotCache{
		entries: make(map[string]memoryEntry),
		ttl:     SnapshotTTL,
	}
}

func (c *MemorySnapshotCache) Get(ctx context.Context, code string, lastUpdate float64) (*model.Room, error) {
	c.mu.Lock()
	entry, ok := c.entries[snapshotKey(code, lastUpdate)]
	c.mu.Unlock()
	if !ok || time.Now().After(entry.expires) {
		return nil, nil
	}
	var room model.Room
	if err := json.Unmarshal(entry.data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *MemorySnapshotCache) Set(ctx context.Context, code string, room *model.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	now := time.Now()
	c.mu.Lock()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
	c.entries[snapshotKey(code, room.LastUpdate)] = memoryEntry{
		data:    data,
		expires: now.Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}
