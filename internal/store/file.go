package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists all rooms in a single JSON container file keyed by room
// code. An unreadable or corrupt file degrades to "no rooms exist yet" so a
// fresh room is always available; only write failures propagate.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the container file at path. The file
// is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(ctx context.Context, code string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.load()
	doc, ok := rooms[code]
	if !ok {
		return nil, nil
	}
	return doc, nil
}

func (s *FileStore) Put(ctx context.Context, code string, doc map[string]any) error {
	copied, err := cloneDoc(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.load()
	rooms[code] = copied
	return s.flush(rooms)
}

func (s *FileStore) load() map[string]map[string]any {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]map[string]any{}
	}
	var rooms map[string]map[string]any
	if err := json.Unmarshal(data, &rooms); err != nil || rooms == nil {
		return map[string]map[string]any{}
	}
	return rooms
}

// flush writes the container atomically via a temp file in the same directory.
func (s *FileStore) flush(rooms map[string]map[string]any) error {
	data, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("encode rooms file: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".rooms-*.json")
	if err != nil {
		return fmt.Errorf("create temp rooms file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write rooms file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close rooms file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace rooms file: %w", err)
	}
	return nil
}
