// Package redisstore persists device state as plain Redis strings under
// cs:state:<scope>:<key>.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/cuisync/pkg/redis"
)

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetMany(ctx context.Context, values map[string]string) error
	StateKey(scope, key string) string
}

type Store struct {
	client kv
	scope  string
}

func New(client *redis.Client, scope string) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newStore(client, scope)
}

func newStore(client kv, scope string) (*Store, error) {
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &Store{client: client, scope: scope}, nil
}

func (s *Store) Save(ctx context.Context, key string, value json.RawMessage) error {
	if err := s.client.Set(ctx, s.client.StateKey(s.scope, key), string(value), 0); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SaveBatch writes all values with a single MSET.
func (s *Store) SaveBatch(ctx context.Context, values map[string]json.RawMessage) error {
	pairs := make(map[string]string, len(values))
	for key, value := range values {
		pairs[s.client.StateKey(s.scope, key)] = string(value)
	}
	if err := s.client.SetMany(ctx, pairs); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (json.RawMessage, error) {
	value, err := s.client.Get(ctx, s.client.StateKey(s.scope, key))
	if redis.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}
