package engine

import (
	"context"

	"github.com/angelmondragon/cuisync/internal/collab"
	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/internal/padsync"
	"github.com/angelmondragon/cuisync/pkg/enums"
)

type outbound struct {
	msgType enums.SyncMessageType
	payload any
}

func padUpdated(pad *pads.Pad) outbound {
	return outbound{msgType: enums.SyncMessageTypePadUpdated, payload: pad.Clone()}
}

// padRef carries the transition time so peers stamp the same instant.
func padRef(msgType enums.SyncMessageType, pad *pads.Pad) outbound {
	return outbound{msgType: msgType, payload: padsync.PadRef{PadID: pad.ID, Table: pad.Table, At: pad.UpdatedAt}}
}

// publish must be called without the engine lock: an in-process channel
// delivers synchronously and the echo re-enters ApplyRemote.
func (e *Engine) publish(ctx context.Context, msgs ...outbound) {
	for _, m := range msgs {
		if _, err := e.sync.Publish(ctx, m.msgType, m.payload); err != nil {
			e.logg.Error(ctx, "failed to encode sync message", err)
		}
	}
}

// ApplyRemote is the sync subscription handler. It merges a peer's message
// into the local store; it never records undo entries.
func (e *Engine) ApplyRemote(ctx context.Context, msg padsync.Message) {
	e.mu.Lock()
	res, err := e.sync.OnMessage(ctx, msg)
	count := e.store.Len()
	e.mu.Unlock()

	if err != nil {
		logCtx := e.logg.WithSyncMessage(ctx, msg.EventID, string(msg.Type), msg.DeviceID)
		e.logg.Warn(logCtx, "sync message rejected: "+err.Error())
		return
	}
	if !res.Applied {
		return
	}
	if msg.Type == enums.SyncMessageTypeMenuUpdated {
		e.schedulePersist()
		return
	}
	if len(res.PadIDs) == 0 {
		return
	}
	e.metrics.SetActivePads(count)
	e.schedulePersist()
}

// UpdateMenu replaces the local menu, saves it and shares it with peers.
func (e *Engine) UpdateMenu(ctx context.Context, menu collab.Menu) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.collab.SetMenu(menu)
	e.publish(ctx, outbound{msgType: enums.SyncMessageTypeMenuUpdated, payload: e.collab.Menu()})
	e.schedulePersist()
}

func removedRef(padID string) padsync.PadRef {
	return padsync.PadRef{PadID: padID}
}
