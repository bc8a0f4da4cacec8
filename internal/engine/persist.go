package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/cuisync/internal/collab"
	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/internal/persistence"
	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
	"github.com/angelmondragon/cuisync/pkg/metrics"
	"go.uber.org/multierr"
)

// Load restores pads, history, settings and the last known menu saved by a
// previous run. Absent keys leave the corresponding state empty.
func (e *Engine) Load(ctx context.Context) error {
	var (
		active, history []*pads.Pad
		settings        persistence.Settings
		menu            *collab.Menu
	)
	err := multierr.Combine(
		e.loadKey(ctx, persistence.KeyPads, &active),
		e.loadKey(ctx, persistence.KeyHistory, &history),
		e.loadKey(ctx, persistence.KeySettings, &settings),
		e.loadKey(ctx, persistence.KeyMenu, &menu),
	)
	if err != nil {
		e.logg.Error(ctx, "failed to load persisted state", err)
		e.notify(NoticeError, "Saved orders could not be loaded")
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load persisted state")
	}

	e.mu.Lock()
	e.store.Restore(active, history)
	e.settings = settings
	count := e.store.Len()
	e.mu.Unlock()
	if menu != nil {
		e.collab.SetMenu(*menu)
	}

	e.metrics.SetActivePads(count)
	e.logg.Info(e.logg.WithField(ctx, "pads", count), "persisted state loaded")
	return nil
}

func (e *Engine) loadKey(ctx context.Context, key string, dest any) error {
	raw, err := e.adapter.Load(ctx, key)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Flush writes the current state now instead of waiting for the debounce.
// A timer-fired write already running finishes first, so the last write
// is always the newest snapshot.
func (e *Engine) Flush(ctx context.Context) error {
	return e.debouncer.RunNow(func() error {
		return e.persist(ctx)
	})
}

func (e *Engine) schedulePersist() {
	e.debouncer.Trigger()
}

// persist snapshots under the engine lock and writes outside it. Failures
// are logged and surfaced as a notice; in-memory state is kept as is.
func (e *Engine) persist(ctx context.Context) error {
	e.mu.Lock()
	active := e.store.Snapshot()
	history := e.store.History()
	settings := e.settings
	e.mu.Unlock()
	menu := e.collab.Menu()

	if active == nil {
		active = []*pads.Pad{}
	}
	if history == nil {
		history = []*pads.Pad{}
	}

	start := time.Now()
	err := e.write(ctx, map[string]any{
		persistence.KeyPads:     active,
		persistence.KeyHistory:  history,
		persistence.KeySettings: settings,
		persistence.KeyMenu:     menu,
	})
	if err != nil {
		e.metrics.ObservePersist(metrics.OutcomeFailure, time.Since(start))
		e.logg.Error(ctx, "failed to persist state", err)
		e.notify(NoticeWarning, "Changes could not be saved on this device")
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persist state")
	}
	e.metrics.ObservePersist(metrics.OutcomeSuccess, time.Since(start))
	return nil
}

// write saves every key, in one batch when the adapter supports it.
func (e *Engine) write(ctx context.Context, values map[string]any) error {
	encoded := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		encoded[key] = data
	}

	if batch, ok := e.adapter.(persistence.BatchSaver); ok {
		return batch.SaveBatch(ctx, encoded)
	}
	var err error
	for _, key := range []string{persistence.KeyPads, persistence.KeyHistory, persistence.KeySettings, persistence.KeyMenu} {
		if data, ok := encoded[key]; ok {
			err = multierr.Append(err, e.adapter.Save(ctx, key, data))
		}
	}
	return err
}
