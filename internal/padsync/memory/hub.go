// Package memory is an in-process sync channel. Every device attached to the
// same Hub receives every posted message, its sender included, synchronously.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/angelmondragon/cuisync/internal/padsync"
)

// ErrHubDown is returned by Post while the hub simulates an outage.
var ErrHubDown = errors.New("sync hub unavailable")

type Hub struct {
	mu     sync.RWMutex
	next   int
	subs   map[int]padsync.Handler
	down   bool
	posted []padsync.Message
}

func NewHub() *Hub {
	return &Hub{subs: map[int]padsync.Handler{}}
}

// Post delivers msg to every subscriber in subscription order.
func (h *Hub) Post(ctx context.Context, msg padsync.Message) error {
	h.mu.Lock()
	if h.down {
		h.mu.Unlock()
		return ErrHubDown
	}
	h.posted = append(h.posted, msg)
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]padsync.Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, h.subs[id])
	}
	h.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, msg)
	}
	return nil
}

func (h *Hub) Subscribe(_ context.Context, handler padsync.Handler) (padsync.Unsubscribe, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = handler
	h.mu.Unlock()

	return func() error {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		return nil
	}, nil
}

// SetDown makes Post fail until called again with false.
func (h *Hub) SetDown(down bool) {
	h.mu.Lock()
	h.down = down
	h.mu.Unlock()
}

// Posted returns every message accepted so far.
func (h *Hub) Posted() []padsync.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]padsync.Message, len(h.posted))
	copy(out, h.posted)
	return out
}
