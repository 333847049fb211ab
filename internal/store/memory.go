package store

import (
	"context"
	"sync"
)

// MemoryStore keeps room documents for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]map[string]any
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]map[string]any)}
}

func (s *MemoryStore) Get(ctx context.Context, code string) (map[string]any, error) {
	s.mu.RLock()
	doc, ok := s.rooms[code]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return cloneDoc(doc)
}

func (s *MemoryStore) Put(ctx context.Context, code string, doc map[string]any) error {
	copied, err := cloneDoc(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.rooms[code] = copied
	s.mu.Unlock()
	return nil
}
