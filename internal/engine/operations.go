package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/internal/payments"
	"github.com/angelmondragon/cuisync/internal/undo"
	"github.com/angelmondragon/cuisync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
	"github.com/angelmondragon/cuisync/pkg/metrics"
	"github.com/angelmondragon/cuisync/pkg/validation"
	"github.com/shopspring/decimal"
)

const (
	opAddItem       = "add_item"
	opSendPad       = "send_pad"
	opSendAll       = "send_all"
	opMarkReady     = "mark_ready"
	opMarkServed    = "mark_served"
	opDeletePad     = "delete_pad"
	opRecordPayment = "record_payment"
	opMarkPaid      = "mark_paid"
	opUndo          = "undo"
	opUpdateDetails = "update_details"
)

// AddItemRequest adds one item to the open pad of Table, creating the pad
// when the table has none. MenuDishID fills dish, price and category from
// the forwarded menu; explicit fields take precedence.
type AddItemRequest struct {
	Table      int    `json:"table"`
	MenuDishID string `json:"menuDishId,omitempty"`
	pads.ItemInput
}

// DetailsInput updates the descriptive fields of a pad. Nil fields are left unchanged.
type DetailsInput struct {
	Covers     *int    `json:"covers,omitempty" validate:"omitempty,min=1,max=999"`
	ClientName *string `json:"clientName,omitempty" validate:"omitempty,max=120"`
	TableNotes *string `json:"tableNotes,omitempty" validate:"omitempty,max=1000"`
}

// PaymentOutcome is the result of RecordPayment.
type PaymentOutcome struct {
	Receipt *payments.Receipt `json:"receipt"`
	Pad     *pads.Pad         `json:"pad"`
}

func (e *Engine) AddItemToPad(ctx context.Context, req AddItemRequest) (*pads.Pad, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	pad, item, err := e.addItem(req)
	e.finish(opAddItem, err)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, padUpdated(pad))
	e.afterMutation()
	e.notify(NoticeSuccess, fmt.Sprintf("%d× %s added to table %d", item.Qty, item.Dish, pad.Table))
	return pad, nil
}

func (e *Engine) addItem(req AddItemRequest) (*pads.Pad, *pads.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	input := req.ItemInput
	if req.MenuDishID != "" {
		dish, ok := e.collab.LookupDish(req.MenuDishID)
		if !ok {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"menuDishId": "unknown dish"})
		}
		if strings.TrimSpace(input.Dish) == "" {
			input.Dish = dish.Name
		}
		if input.Price == nil {
			price := dish.Price
			input.Price = &price
		}
		if input.Category == "" {
			input.Category = dish.Category
		}
	}
	if err := pads.ValidateTable(req.Table); err != nil {
		return nil, nil, err
	}
	if err := pads.ValidateItem(&input); err != nil {
		return nil, nil, err
	}

	pad := e.store.OpenPadForTable(req.Table)
	created := false
	if pad != nil {
		if err := e.record(enums.UndoKindItemAdded, fmt.Sprintf("item added to table %d", pad.Table), -1, false, pad); err != nil {
			return nil, nil, err
		}
	} else {
		var err error
		pad, created, err = e.lifecycle.GetOrCreateOpenPad(req.Table)
		if err != nil {
			return nil, nil, err
		}
		if err := e.record(enums.UndoKindPadCreated, fmt.Sprintf("new order on table %d", pad.Table), -1, false, pad); err != nil {
			e.store.Remove(pad.ID)
			return nil, nil, err
		}
	}

	item, err := e.lifecycle.AddItem(pad, input)
	if err != nil {
		e.undo.Discard()
		if created {
			e.store.Remove(pad.ID)
		}
		return nil, nil, err
	}
	added := *item
	return pad.Clone(), &added, nil
}

func (e *Engine) SendPad(ctx context.Context, padID string) (*pads.Pad, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	pad, err := e.transition(padID, pads.TargetSend, enums.UndoKindSend, "sent to the kitchen")
	e.finish(opSendPad, err)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, padRef(enums.SyncMessageTypePadSent, pad))
	e.afterMutation()
	e.notify(NoticeSuccess, fmt.Sprintf("Table %d sent to the kitchen", pad.Table))
	return pad, nil
}

func (e *Engine) MarkPadReady(ctx context.Context, padID string) (*pads.Pad, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	pad, err := e.transition(padID, pads.TargetMarkReady, enums.UndoKindReady, "marked ready")
	e.finish(opMarkReady, err)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, padRef(enums.SyncMessageTypePadReady, pad))
	e.afterMutation()
	e.notify(NoticeSuccess, fmt.Sprintf("Table %d is ready", pad.Table))
	return pad, nil
}

func (e *Engine) transition(padID string, target pads.Target, kind enums.UndoKind, label string) (*pads.Pad, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pad, _, err := e.findLocked(padID)
	if err != nil {
		return nil, err
	}
	if err := pads.CanTransition(pad.Status, target); err != nil {
		return nil, err
	}
	if err := e.record(kind, fmt.Sprintf("table %d %s", pad.Table, label), -1, false, pad); err != nil {
		return nil, err
	}
	if err := e.lifecycle.Transition(pad, target); err != nil {
		e.undo.Discard()
		return nil, err
	}
	return pad.Clone(), nil
}

// SendAllOpenPads sends every open pad in display order as one undoable action.
func (e *Engine) SendAllOpenPads(ctx context.Context) ([]*pads.Pad, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	sent, err := e.sendAll()
	e.finish(opSendAll, err)
	if err != nil {
		return nil, err
	}
	if len(sent) == 0 {
		e.notify(NoticeInfo, "No open orders to send")
		return sent, nil
	}
	msgs := make([]outbound, 0, len(sent))
	for _, pad := range sent {
		msgs = append(msgs, padRef(enums.SyncMessageTypePadSent, pad))
	}
	e.publish(ctx, msgs...)
	e.afterMutation()
	e.notify(NoticeSuccess, fmt.Sprintf("%d orders sent to the kitchen", len(sent)))
	return sent, nil
}

func (e *Engine) sendAll() ([]*pads.Pad, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := e.lifecycle.OpenPads()
	if len(open) == 0 {
		return []*pads.Pad{}, nil
	}
	if err := e.record(enums.UndoKindSendAll, "all open orders sent", -1, false, open...); err != nil {
		return nil, err
	}
	sent, err := e.lifecycle.SendAll()
	if err != nil {
		// SendAll only fails on a pad that left open meanwhile, which the lock rules out.
		e.undo.Discard()
		return nil, err
	}
	return pads.ClonePads(sent), nil
}

// MarkPadServed closes the pad and moves it to history.
func (e *Engine) MarkPadServed(ctx context.Context, padID string) (*pads.Pad, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	pad, err := e.markServed(padID)
	e.finish(opMarkServed, err)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, padUpdated(pad))
	e.afterMutation()
	e.notify(NoticeSuccess, fmt.Sprintf("Table %d served", pad.Table))
	return pad, nil
}

func (e *Engine) markServed(padID string) (*pads.Pad, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pad, idx, err := e.findLocked(padID)
	if err != nil {
		return nil, err
	}
	if err := pads.CanTransition(pad.Status, pads.TargetMarkServed); err != nil {
		return nil, err
	}
	if err := e.record(enums.UndoKindServed, fmt.Sprintf("table %d served", pad.Table), idx, true, pad); err != nil {
		return nil, err
	}
	if err := e.lifecycle.Transition(pad, pads.TargetMarkServed); err != nil {
		e.undo.Discard()
		return nil, err
	}
	if _, err := e.lifecycle.Archive(pad); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "archive served pad")
	}
	return pad.Clone(), nil
}

func (e *Engine) DeletePad(ctx context.Context, padID string) (*pads.Pad, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	pad, err := e.deletePad(padID)
	e.finish(opDeletePad, err)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, padRef(enums.SyncMessageTypePadRemoved, pad))
	e.afterMutation()
	e.notify(NoticeInfo, fmt.Sprintf("Order for table %d deleted", pad.Table))
	return pad, nil
}

func (e *Engine) deletePad(padID string) (*pads.Pad, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pad, idx, err := e.findLocked(padID)
	if err != nil {
		return nil, err
	}
	if err := e.record(enums.UndoKindDeleted, fmt.Sprintf("order for table %d deleted", pad.Table), idx, false, pad); err != nil {
		return nil, err
	}
	if _, err := e.lifecycle.Remove(pad); err != nil {
		e.undo.Discard()
		return nil, err
	}
	return pad.Clone(), nil
}

// RecordPayment applies a partial payment. A payment that covers the balance
// settles the pad and archives it; that case is undone as a settlement.
func (e *Engine) RecordPayment(ctx context.Context, padID string, input payments.PaymentInput) (*PaymentOutcome, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	outcome, err := e.recordPayment(padID, input)
	e.finish(opRecordPayment, err)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, padUpdated(outcome.Pad))
	e.afterMutation()
	if outcome.Receipt.Settled {
		e.notify(NoticeSuccess, fmt.Sprintf("Table %d settled", outcome.Pad.Table))
	} else {
		e.notify(NoticeSuccess, fmt.Sprintf("Payment recorded, %s remaining", outcome.Receipt.Remaining.StringFixed(2)))
	}
	return outcome, nil
}

func (e *Engine) recordPayment(padID string, input payments.PaymentInput) (*PaymentOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pad, idx, err := e.findLocked(padID)
	if err != nil {
		return nil, err
	}
	before := pad.Clone()
	receipt, err := e.ledger.RecordPayment(pad, input)
	if err != nil {
		return nil, err
	}

	kind, label, archived := enums.UndoKindPayment, fmt.Sprintf("payment on table %d", pad.Table), false
	if receipt.Settled {
		kind, label, archived = enums.UndoKindSettled, fmt.Sprintf("table %d settled", pad.Table), true
	}
	// The snapshot predates the payment; pushing it now keeps the stack
	// consistent with the kind the ledger decided on.
	if err := e.record(kind, label, idx, archived, before); err != nil {
		return nil, err
	}
	return &PaymentOutcome{Receipt: receipt, Pad: pad.Clone()}, nil
}

// MarkPadPaid settles a pad without recording a payment, for bills taken
// outside the ledger or pads with nothing priced on them.
func (e *Engine) MarkPadPaid(ctx context.Context, padID string) (*pads.Pad, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	pad, err := e.markPaid(padID)
	e.finish(opMarkPaid, err)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, padUpdated(pad))
	e.afterMutation()
	e.notify(NoticeSuccess, fmt.Sprintf("Table %d marked paid", pad.Table))
	return pad, nil
}

func (e *Engine) markPaid(padID string) (*pads.Pad, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pad, idx, err := e.findLocked(padID)
	if err != nil {
		return nil, err
	}
	if err := pads.CanTransition(pad.Status, pads.TargetSettle); err != nil {
		return nil, err
	}
	if err := e.record(enums.UndoKindSettled, fmt.Sprintf("table %d marked paid", pad.Table), idx, true, pad); err != nil {
		return nil, err
	}
	if _, err := e.ledger.Settle(pad); err != nil {
		e.undo.Discard()
		return nil, err
	}
	return pad.Clone(), nil
}

// PaymentPanel returns totals and split suggestions for a pad.
func (e *Engine) PaymentPanel(padID string) (payments.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pad, _, err := e.findLocked(padID)
	if err != nil {
		return payments.Summary{}, err
	}
	return e.ledger.Summarize(pad), nil
}

// SplitByItems is the amount due for a subset of a pad's items.
func (e *Engine) SplitByItems(padID string, itemIDs []string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pad, _, err := e.findLocked(padID)
	if err != nil {
		return decimal.Zero, err
	}
	return e.ledger.SplitByItems(pad, itemIDs)
}

// PerformUndo reverts the most recent local action and shares the restored state.
func (e *Engine) PerformUndo(ctx context.Context) (*undo.Applied, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.mu.Lock()
	applied, err := e.undo.UndoLast()
	e.mu.Unlock()
	e.finish(opUndo, err)
	if err != nil {
		return nil, err
	}

	var msgs []outbound
	for i, id := range applied.PadIDs {
		restored := applied.Restored[i]
		switch {
		case restored != nil:
			msgs = append(msgs, padUpdated(restored))
		case applied.Kind == enums.UndoKindPadCreated:
			msgs = append(msgs, outbound{msgType: enums.SyncMessageTypePadRemoved, payload: removedRef(id)})
		}
	}
	e.publish(ctx, msgs...)
	e.afterMutation()
	e.notify(NoticeInfo, "Undone: "+applied.Label)
	return applied, nil
}

func (e *Engine) UpdatePadDetails(ctx context.Context, padID string, input DetailsInput) (*pads.Pad, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	pad, err := e.updateDetails(padID, input)
	e.finish(opUpdateDetails, err)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, padUpdated(pad))
	e.afterMutation()
	return pad, nil
}

func (e *Engine) updateDetails(padID string, input DetailsInput) (*pads.Pad, error) {
	if err := validation.Struct(&input); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	pad, _, err := e.findLocked(padID)
	if err != nil {
		return nil, err
	}
	if err := e.record(enums.UndoKindDetails, fmt.Sprintf("details of table %d", pad.Table), -1, false, pad); err != nil {
		return nil, err
	}
	if input.Covers != nil {
		covers := *input.Covers
		pad.Covers = &covers
	}
	if input.ClientName != nil {
		pad.ClientName = strings.TrimSpace(*input.ClientName)
	}
	if input.TableNotes != nil {
		pad.TableNotes = strings.TrimSpace(*input.TableNotes)
	}
	pad.UpdatedAt = e.lifecycle.Now()
	return pad.Clone(), nil
}

// Pads returns copies of the active pads in display order.
func (e *Engine) Pads() []*pads.Pad {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// History returns copies of the archived pads, oldest first.
func (e *Engine) History() []*pads.Pad {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.History()
}

func (e *Engine) Pad(padID string) (*pads.Pad, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pad, _, err := e.findLocked(padID)
	if err != nil {
		return nil, err
	}
	return pad.Clone(), nil
}

func (e *Engine) findLocked(padID string) (*pads.Pad, int, error) {
	pad, idx := e.store.Find(padID)
	if pad == nil {
		return nil, -1, pkgerrors.New(pkgerrors.CodeNotFound, "pad not found").
			WithDetails(map[string]string{"id": padID})
	}
	return pad, idx, nil
}

func (e *Engine) record(kind enums.UndoKind, label string, index int, archived bool, affected ...*pads.Pad) error {
	err := e.undo.Record(undo.Entry{
		Kind:          kind,
		Pads:          affected,
		OriginalIndex: index,
		Label:         label,
		Archived:      archived,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record undo entry")
	}
	return nil
}

func (e *Engine) afterMutation() {
	e.mu.Lock()
	count := e.store.Len()
	e.mu.Unlock()
	e.metrics.SetActivePads(count)
	e.schedulePersist()
}

func (e *Engine) finish(operation string, err error) {
	if err == nil {
		e.metrics.IncOperation(operation, metrics.OutcomeSuccess)
		return
	}
	coded := pkgerrors.As(err)
	if coded == nil || pkgerrors.MetadataFor(coded.Code()).HTTPStatus >= 500 {
		e.metrics.IncOperation(operation, metrics.OutcomeFailure)
		e.logg.Error(context.Background(), operation+" failed", err)
		e.notify(NoticeError, "Something went wrong")
		return
	}
	e.metrics.IncOperation(operation, metrics.OutcomeRejected)
	level := NoticeError
	if coded.Code() == pkgerrors.CodeEmptyUndo {
		level = NoticeInfo
	}
	e.notify(level, coded.Message())
}
