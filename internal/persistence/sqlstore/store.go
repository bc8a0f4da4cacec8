// Package sqlstore persists device state in the kv_entries table through
// GORM. It works on Postgres and SQLite alike.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/cuisync/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store keeps one row per (scope, key); scope is the restaurant so devices
// sharing a database see the same state.
type Store struct {
	db    *gorm.DB
	scope string
	now   func() time.Time
}

func New(db *gorm.DB, scope string) (*Store, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &Store{
		db:    db,
		scope: scope,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return s.db
	}
	return s.db.WithContext(ctx)
}

// Save upserts the value for key.
func (s *Store) Save(ctx context.Context, key string, value json.RawMessage) error {
	return s.upsert(s.conn(ctx), key, value)
}

// SaveBatch upserts every value in one transaction so pads and history
// never land half written.
func (s *Store) SaveBatch(ctx context.Context, values map[string]json.RawMessage) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			if err := s.upsert(tx, key, values[key]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) upsert(tx *gorm.DB, key string, value json.RawMessage) error {
	entry := models.KVEntry{
		Scope:     s.scope,
		Key:       key,
		Value:     string(value),
		UpdatedAt: s.now(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (json.RawMessage, error) {
	var entry models.KVEntry
	err := s.conn(ctx).
		Where("scope = ? AND key = ?", s.scope, key).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return json.RawMessage(entry.Value), nil
}

// Keys lists the keys stored for this scope.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.conn(ctx).Model(&models.KVEntry{}).
		Where("scope = ?", s.scope).
		Order("key").
		Pluck("key", &keys).Error
	return keys, err
}
