// Package store provides keyed storage of raw room documents. Stores hand out
// and accept plain JSON-shaped maps; decoding into the typed model happens in
// the service layer after migration.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// RoomStore is the storage contract for room documents. Get returns
// (nil, nil) when no document exists for the code. Implementations guarantee
// read-your-own-write consistency within the process; write serialization
// across the load-mutate-persist cycle is owned by the room service.
type RoomStore interface {
	Get(ctx context.Context, code string) (map[string]any, error)
	Put(ctx context.Context, code string, doc map[string]any) error
}

// cloneDoc deep-copies a document through JSON so no caller ever aliases
// stored state.
func cloneDoc(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode room document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode room document: %w", err)
	}
	return out, nil
}
