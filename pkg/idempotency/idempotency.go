package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cuisync/pkg/redis"
)

// Manager tracks sync event IDs already applied by a device using Redis SETNX with a TTL.
// Keys follow the `cs:idempotency:evt:applied:<device>:<event_id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that marks events as applied for the given TTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkProcessed returns true if the event has already been applied by
// the device and otherwise marks it with the configured TTL.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, device string, eventID uuid.UUID) (bool, error) {
	key, err := m.processedKey(device, eventID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete forgets an event so that a redelivery is applied again.
func (m *Manager) Delete(ctx context.Context, device string, eventID uuid.UUID) error {
	key, err := m.processedKey(device, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(device string, eventID uuid.UUID) (string, error) {
	if device == "" {
		return "", errors.New("device id is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:applied:%s", device)
	return m.store.IdempotencyKey(scope, eventID.String()), nil
}
