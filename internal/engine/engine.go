// Package engine is one device's order-pad engine. Every entry point runs to
// completion under a single mutex, the sync subscription included, so the pad
// store, undo stack and ledger never observe interleaved operations.
// Publishing and persistence happen after the mutex is released; a second
// lock held from commit through publish keeps peers seeing local operations
// in commit order.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/cuisync/internal/collab"
	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/internal/padsync"
	"github.com/angelmondragon/cuisync/internal/payments"
	"github.com/angelmondragon/cuisync/internal/persistence"
	"github.com/angelmondragon/cuisync/internal/undo"
	"github.com/angelmondragon/cuisync/pkg/logger"
	"github.com/angelmondragon/cuisync/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

const DefaultPersistDebounce = 300 * time.Millisecond

type Params struct {
	DeviceID        string
	Channel         padsync.Channel
	Adapter         persistence.Adapter
	Collab          *collab.State
	Policy          padsync.MergePolicy
	TaxRatePct      decimal.Decimal
	Epsilon         decimal.Decimal
	PersistDebounce time.Duration
	Online          bool
	Metrics         *metrics.EngineMetrics
	Logger          *logger.Logger
	Now             func() time.Time
}

type Engine struct {
	// pubMu is taken before mu by every local mutation and released after
	// its publish. ApplyRemote never takes it, so a synchronous echo cannot
	// deadlock.
	pubMu sync.Mutex
	mu    sync.Mutex

	deviceID  string
	store     *pads.Store
	lifecycle *pads.Lifecycle
	ledger    *payments.Ledger
	undo      *undo.Manager
	sync      *padsync.Broadcaster
	channel   padsync.Channel
	adapter   persistence.Adapter
	collab    *collab.State
	settings  persistence.Settings
	debouncer *persistence.Debouncer
	notices   *noticeLog
	metrics   *metrics.EngineMetrics
	logg      *logger.Logger

	unsubscribe padsync.Unsubscribe
}

func New(params Params) (*Engine, error) {
	if params.DeviceID == "" {
		return nil, errors.New("device id is required")
	}
	if params.Channel == nil {
		return nil, errors.New("sync channel is required")
	}
	if params.Adapter == nil {
		return nil, errors.New("persistence adapter is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	state := params.Collab
	if state == nil {
		state = collab.NewState()
	}

	store := pads.NewStore()
	lifecycle, err := pads.NewLifecycle(store, params.Now)
	if err != nil {
		return nil, err
	}
	ledger, err := payments.NewLedger(lifecycle, params.TaxRatePct, params.Epsilon)
	if err != nil {
		return nil, err
	}
	undoManager, err := undo.NewManager(store)
	if err != nil {
		return nil, err
	}
	broadcaster, err := padsync.NewBroadcaster(padsync.Options{
		DeviceID:  params.DeviceID,
		Channel:   params.Channel,
		Store:     store,
		Lifecycle: lifecycle,
		Sink:      state,
		Policy:    params.Policy,
		Online:    params.Online,
		Metrics:   params.Metrics,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		deviceID:  params.DeviceID,
		store:     store,
		lifecycle: lifecycle,
		ledger:    ledger,
		undo:      undoManager,
		sync:      broadcaster,
		channel:   params.Channel,
		adapter:   params.Adapter,
		collab:    state,
		notices:   newNoticeLog(lifecycle.Now),
		metrics:   params.Metrics,
		logg:      logg,
	}
	e.debouncer = persistence.NewDebouncer(params.PersistDebounce, func() {
		_ = e.persist(context.Background())
	})
	return e, nil
}

// Start subscribes to the sync channel. Peers' messages are applied through ApplyRemote.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsubscribe != nil {
		return errors.New("engine already started")
	}
	unsubscribe, err := e.channel.Subscribe(ctx, e.ApplyRemote)
	if err != nil {
		return err
	}
	e.unsubscribe = unsubscribe
	e.logg.Info(ctx, "sync subscription started")
	return nil
}

// Close stops the subscription and writes any pending state.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	var err error
	if unsubscribe != nil {
		err = multierr.Append(err, unsubscribe())
	}
	err = multierr.Append(err, e.Flush(ctx))
	e.debouncer.Stop()
	return err
}

func (e *Engine) DeviceID() string {
	return e.deviceID
}

// Collab exposes the forwarded menu, table and inventory state.
func (e *Engine) Collab() *collab.State {
	return e.collab
}

// SetOnline flips connectivity; going online replays the offline queue.
func (e *Engine) SetOnline(ctx context.Context, online bool) error {
	err := e.sync.SetOnline(ctx, online)
	if err != nil {
		e.logg.Warn(ctx, "offline queue flush stopped: "+err.Error())
		e.notify(NoticeWarning, "Some changes are still waiting to sync")
	}
	return err
}

func (e *Engine) Online() bool {
	return e.sync.Online()
}

// QueuedMessages is the number of messages waiting for connectivity.
func (e *Engine) QueuedMessages() int {
	return e.sync.QueueLen()
}

// UndoDepth is the number of actions that can be undone.
func (e *Engine) UndoDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.undo.Len()
}

func (e *Engine) Settings() persistence.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

func (e *Engine) SetCompactMode(compact bool) {
	e.mu.Lock()
	e.settings.CompactMode = compact
	e.mu.Unlock()
	e.schedulePersist()
}
