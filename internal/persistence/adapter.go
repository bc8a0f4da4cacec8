// Package persistence saves a device's state as JSON values by key.
package persistence

import (
	"context"
	"encoding/json"
	"sync"
)

const (
	KeyPads     = "cuisync-pads"
	KeyHistory  = "cuisync-history"
	KeySettings = "cuisync-settings"
	KeyMenu     = "cuisync-menu"
)

// Adapter stores opaque JSON values. Load returns nil, nil for an absent key.
type Adapter interface {
	Save(ctx context.Context, key string, value json.RawMessage) error
	Load(ctx context.Context, key string) (json.RawMessage, error)
}

// BatchSaver is implemented by adapters that can write several keys atomically.
type BatchSaver interface {
	SaveBatch(ctx context.Context, values map[string]json.RawMessage) error
}

// Settings is the device preference block persisted with the pads.
type Settings struct {
	CompactMode bool `json:"compactMode"`
}

// Memory is an Adapter backed by a map. It loses everything on restart.
type Memory struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{values: map[string]json.RawMessage{}}
}

func (m *Memory) Save(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (m *Memory) Load(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append(json.RawMessage(nil), value...), nil
}
