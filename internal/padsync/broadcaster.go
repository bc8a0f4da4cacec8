package padsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/pkg/enums"
	"github.com/angelmondragon/cuisync/pkg/logger"
	"github.com/angelmondragon/cuisync/pkg/metrics"
)

// Sink receives the collaborator state forwarded by peers (menu, tables, inventory).
type Sink interface {
	Forward(msgType enums.SyncMessageType, payload json.RawMessage) error
}

// Options wires a Broadcaster.
type Options struct {
	DeviceID  string
	Channel   Channel
	Store     *pads.Store
	Lifecycle *pads.Lifecycle
	Sink      Sink
	Policy    MergePolicy
	Online    bool
	Metrics   *metrics.EngineMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Result reports the effect of one inbound message.
type Result struct {
	Applied bool
	// PadIDs lists the pads whose local state changed.
	PadIDs []string
	Reason string
}

// Broadcaster publishes local changes to peers and merges theirs into the
// local store.
//
// Outbound state (online flag, offline queue) has its own lock. OnMessage
// touches the pad store and must be called with the store owner's lock held.
type Broadcaster struct {
	deviceID  string
	channel   Channel
	store     *pads.Store
	lifecycle *pads.Lifecycle
	sink      Sink
	policy    MergePolicy
	metrics   *metrics.EngineMetrics
	logg      *logger.Logger
	now       func() time.Time

	mu     sync.Mutex
	online bool
	queue  []Message
}

func NewBroadcaster(opts Options) (*Broadcaster, error) {
	if opts.DeviceID == "" {
		return nil, errors.New("device id is required")
	}
	if opts.Channel == nil {
		return nil, errors.New("sync channel is required")
	}
	if opts.Store == nil {
		return nil, errors.New("pad store is required")
	}
	if opts.Lifecycle == nil {
		return nil, errors.New("pad lifecycle is required")
	}
	policy := opts.Policy
	if policy == nil {
		policy = LastWriterWins
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := opts.Now
	if now == nil {
		now = opts.Lifecycle.Now
	}
	return &Broadcaster{
		deviceID:  opts.DeviceID,
		channel:   opts.Channel,
		store:     opts.Store,
		lifecycle: opts.Lifecycle,
		sink:      opts.Sink,
		policy:    policy,
		metrics:   opts.Metrics,
		logg:      logg,
		now:       now,
		online:    opts.Online,
	}, nil
}

// DeviceID is the id stamped on every outgoing message.
func (b *Broadcaster) DeviceID() string {
	return b.deviceID
}

// Publish wraps payload in a message and posts it, or queues it while offline
// or when the post fails. Only encoding errors are returned.
func (b *Broadcaster) Publish(ctx context.Context, msgType enums.SyncMessageType, payload any) (Message, error) {
	msg, err := NewMessage(msgType, payload, b.deviceID, b.now())
	if err != nil {
		return Message{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(b.queue, msg)
	if !b.online {
		b.metrics.IncSyncMessage(metrics.DirectionOut, string(msgType), metrics.OutcomeQueued)
		b.metrics.SetOfflineQueue(len(b.queue))
		return msg, nil
	}
	// Anything queued earlier goes first so peers see local causal order.
	if _, err := b.flushLocked(ctx); err != nil {
		b.logg.Warn(b.logg.WithSyncMessage(ctx, msg.EventID, string(msg.Type), msg.DeviceID), fmt.Sprintf("sync post failed, queued: %v", err))
	}
	return msg, nil
}

// FlushOfflineQueue replays queued messages in order and stops at the first
// failure, leaving it and everything after it queued.
func (b *Broadcaster) FlushOfflineQueue(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx)
}

func (b *Broadcaster) flushLocked(ctx context.Context) (int, error) {
	sent := 0
	defer func() {
		b.metrics.SetOfflineQueue(len(b.queue))
	}()
	for len(b.queue) > 0 {
		msg := b.queue[0]
		if err := b.channel.Post(ctx, msg); err != nil {
			b.metrics.IncSyncMessage(metrics.DirectionOut, string(msg.Type), metrics.OutcomeQueued)
			return sent, fmt.Errorf("post %s: %w", msg.Type, err)
		}
		b.queue = b.queue[1:]
		sent++
		b.metrics.IncSyncMessage(metrics.DirectionOut, string(msg.Type), metrics.OutcomeSuccess)
	}
	b.queue = nil
	return sent, nil
}

// SetOnline flips connectivity. Going online flushes the queue.
func (b *Broadcaster) SetOnline(ctx context.Context, online bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = online
	if !online {
		return nil
	}
	_, err := b.flushLocked(ctx)
	return err
}

func (b *Broadcaster) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

// QueueLen is the number of messages waiting for connectivity.
func (b *Broadcaster) QueueLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Queued returns a copy of the offline queue, oldest first.
func (b *Broadcaster) Queued() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.queue))
	copy(out, b.queue)
	return out
}

// OnMessage merges a peer's message into the local store. Messages from this
// device are dropped before any decoding. Replaying a message leaves the store
// as the first application did.
func (b *Broadcaster) OnMessage(ctx context.Context, msg Message) (Result, error) {
	if msg.DeviceID == b.deviceID {
		return Result{Reason: "self"}, nil
	}

	var (
		res Result
		err error
	)
	switch msg.Type {
	case enums.SyncMessageTypePadUpdated:
		res, err = b.applyPadUpdated(ctx, msg)
	case enums.SyncMessageTypePadSent:
		res, err = b.applyAdvance(msg, enums.PadStatusOpen, pads.TargetSend)
	case enums.SyncMessageTypePadReady:
		res, err = b.applyAdvance(msg, enums.PadStatusSent, pads.TargetMarkReady)
	case enums.SyncMessageTypePadRemoved:
		res, err = b.applyRemoved(msg)
	case enums.SyncMessageTypeMenuUpdated, enums.SyncMessageTypeTableUpdated, enums.SyncMessageTypeInventoryUpdated:
		res, err = b.forward(msg)
	default:
		err = fmt.Errorf("unknown sync message type %q", msg.Type)
	}

	outcome := metrics.OutcomeIgnored
	switch {
	case err != nil:
		outcome = metrics.OutcomeRejected
	case res.Applied:
		outcome = metrics.OutcomeApplied
	}
	b.metrics.IncSyncMessage(metrics.DirectionIn, string(msg.Type), outcome)
	return res, err
}

func (b *Broadcaster) applyPadUpdated(ctx context.Context, msg Message) (Result, error) {
	var incoming pads.Pad
	if err := json.Unmarshal(msg.Payload, &incoming); err != nil {
		return Result{}, fmt.Errorf("decode pad: %w", err)
	}
	if err := validateIncoming(&incoming); err != nil {
		return Result{}, err
	}

	local, _ := b.store.Find(incoming.ID)
	archived := local == nil && b.store.InHistory(incoming.ID)
	if archived && incoming.Status.IsTerminal() {
		return Result{Reason: "archived"}, nil
	}
	merged := b.policy(local, &incoming)
	if merged == nil {
		return Result{Reason: "policy"}, nil
	}

	if merged.Status.IsTerminal() {
		if local != nil {
			b.store.Remove(local.ID)
		}
		b.store.AppendHistory(merged)
		return Result{Applied: true, PadIDs: []string{merged.ID}, Reason: "archived"}, nil
	}

	res := Result{Applied: true, PadIDs: []string{merged.ID}}
	if archived {
		// The sender undid the archival. Arrival order wins here as well.
		b.store.RetractHistory(merged.ID)
		res.Reason = "restored"
	}
	if merged.Status == enums.PadStatusOpen {
		for _, other := range b.store.Pads() {
			if other.ID == merged.ID || other.Table != merged.Table || other.Status != enums.PadStatusOpen {
				continue
			}
			b.store.Remove(other.ID)
			res.PadIDs = append(res.PadIDs, other.ID)
			b.logg.Warn(b.logg.WithPadID(ctx, other.ID), fmt.Sprintf("open pad superseded by peer pad %s on table %d", merged.ID, merged.Table))
		}
	}
	if local != nil {
		b.store.Replace(merged)
	} else {
		b.store.Append(merged)
	}
	return res, nil
}

func (b *Broadcaster) applyAdvance(msg Message, from enums.PadStatus, target pads.Target) (Result, error) {
	ref, err := decodeRef(msg)
	if err != nil {
		return Result{}, err
	}
	local, _ := b.store.Find(ref.PadID)
	if local == nil {
		return Result{Reason: "unknown pad"}, nil
	}
	if local.Status != from {
		return Result{Reason: "stale"}, nil
	}
	if err := b.lifecycle.TransitionAt(local, target, ref.At); err != nil {
		return Result{}, err
	}
	return Result{Applied: true, PadIDs: []string{local.ID}}, nil
}

func (b *Broadcaster) applyRemoved(msg Message) (Result, error) {
	ref, err := decodeRef(msg)
	if err != nil {
		return Result{}, err
	}
	if _, _, ok := b.store.Remove(ref.PadID); !ok {
		return Result{Reason: "unknown pad"}, nil
	}
	return Result{Applied: true, PadIDs: []string{ref.PadID}}, nil
}

func (b *Broadcaster) forward(msg Message) (Result, error) {
	if b.sink == nil {
		return Result{Reason: "no sink"}, nil
	}
	if err := b.sink.Forward(msg.Type, msg.Payload); err != nil {
		return Result{}, fmt.Errorf("forward %s: %w", msg.Type, err)
	}
	return Result{Applied: true}, nil
}

func decodeRef(msg Message) (PadRef, error) {
	var ref PadRef
	if err := json.Unmarshal(msg.Payload, &ref); err != nil {
		return PadRef{}, fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	if ref.PadID == "" {
		return PadRef{}, fmt.Errorf("%s without pad id", msg.Type)
	}
	if ref.At.IsZero() {
		ref.At = time.UnixMilli(msg.Timestamp).UTC()
	}
	return ref, nil
}

func validateIncoming(pad *pads.Pad) error {
	if pad.ID == "" {
		return errors.New("pad without id")
	}
	if !pad.Status.IsValid() {
		return fmt.Errorf("pad %s has invalid status %q", pad.ID, pad.Status)
	}
	return pads.ValidateTable(pad.Table)
}
