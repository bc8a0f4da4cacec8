package pads

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/cuisync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
	"github.com/angelmondragon/cuisync/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinTable = 1
	MaxTable = 99
	MinQty   = 1
	MaxQty   = 100
)

// Target is a requested status change.
type Target string

const (
	TargetSend       Target = "send"
	TargetMarkReady  Target = "markReady"
	TargetMarkServed Target = "markServed"
	// TargetSettle is only reached through the payment ledger.
	TargetSettle Target = "settle"
)

type edge struct {
	from []enums.PadStatus
	to   enums.PadStatus
}

// transitions is the authoritative state machine. No edge re-enters open.
var transitions = map[Target]edge{
	TargetSend:       {from: []enums.PadStatus{enums.PadStatusOpen}, to: enums.PadStatusSent},
	TargetMarkReady:  {from: []enums.PadStatus{enums.PadStatusSent}, to: enums.PadStatusReady},
	TargetMarkServed: {from: []enums.PadStatus{enums.PadStatusReady}, to: enums.PadStatusServed},
	TargetSettle: {
		from: []enums.PadStatus{enums.PadStatusOpen, enums.PadStatusSent, enums.PadStatusReady},
		to:   enums.PadStatusServed,
	},
}

// ItemInput is a validated request to append one item to a pad.
type ItemInput struct {
	Dish         string           `json:"dish" validate:"required"`
	Qty          int              `json:"qty" validate:"min=1,max=100"`
	Course       enums.Course     `json:"course"`
	Note         string           `json:"note"`
	Price        *decimal.Decimal `json:"price"`
	Category     string           `json:"category"`
	HasAllergens bool             `json:"hasAllergens"`
	Modifiers    []string         `json:"modifiers"`
}

// Lifecycle enforces legal status transitions on the pads of a Store.
type Lifecycle struct {
	store *Store
	now   func() time.Time
}

// NewLifecycle wires a lifecycle around store. A nil clock uses the wall clock in UTC.
func NewLifecycle(store *Store, now func() time.Time) (*Lifecycle, error) {
	if store == nil {
		return nil, fmt.Errorf("pad store required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Lifecycle{store: store, now: now}, nil
}

// Now exposes the lifecycle clock so collaborators stamp with the same source.
func (l *Lifecycle) Now() time.Time {
	return l.now()
}

// ValidateTable rejects table numbers outside 1–99.
func ValidateTable(table int) error {
	return validation.Var("table", table, fmt.Sprintf("min=%d,max=%d", MinTable, MaxTable))
}

// GetOrCreateOpenPad returns the open pad for table, creating and appending
// one when none exists. created reports which case happened.
func (l *Lifecycle) GetOrCreateOpenPad(table int) (pad *Pad, created bool, err error) {
	if err := ValidateTable(table); err != nil {
		return nil, false, err
	}
	if existing := l.store.OpenPadForTable(table); existing != nil {
		return existing, false, nil
	}
	now := l.now()
	pad = &Pad{
		ID:              uuid.NewString(),
		Table:           table,
		Status:          enums.PadStatusOpen,
		Items:           []Item{},
		PartialPayments: []PartialPayment{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	l.store.Append(pad)
	return pad, true, nil
}

// ValidateItem checks input without touching any pad.
func ValidateItem(input *ItemInput) error {
	input.Dish = strings.TrimSpace(input.Dish)
	if input.Course == "" {
		input.Course = enums.CoursePlat
	}
	if err := validation.Struct(input); err != nil {
		return err
	}
	if !input.Course.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"course": fmt.Sprintf("unknown course %q", input.Course)})
	}
	if input.Price != nil && input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"price": "must be at least 0"})
	}
	return nil
}

// AddItem validates input and appends it to pad.
func (l *Lifecycle) AddItem(pad *Pad, input ItemInput) (*Item, error) {
	if pad == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pad not found")
	}
	if err := ValidateItem(&input); err != nil {
		return nil, err
	}
	if pad.Status.IsTerminal() {
		return nil, invalidTransition(pad, "addItem")
	}
	now := l.now()
	item := Item{
		ID:           uuid.NewString(),
		Dish:         input.Dish,
		Qty:          input.Qty,
		Course:       input.Course,
		Note:         strings.TrimSpace(input.Note),
		Price:        cloneDecimal(input.Price),
		Category:     strings.TrimSpace(input.Category),
		HasAllergens: input.HasAllergens,
		Modifiers:    NormalizeModifiers(input.Modifiers),
		CreatedAt:    now,
	}
	pad.Items = append(pad.Items, item)
	pad.UpdatedAt = now
	return &pad.Items[len(pad.Items)-1], nil
}

// CanTransition reports an InvalidTransition error when target is not reachable
// from status. Already satisfied transitions are rejected too.
func CanTransition(status enums.PadStatus, target Target) error {
	e, ok := transitions[target]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown transition %q", target))
	}
	for _, from := range e.from {
		if from == status {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot %s a %s pad", target, status)).
		WithDetails(map[string]any{"from": status, "target": target})
}

// Transition applies target to pad and stamps the matching timestamps.
func (l *Lifecycle) Transition(pad *Pad, target Target) error {
	return l.TransitionAt(pad, target, l.now())
}

// TransitionAt is Transition with an explicit timestamp, used when replaying
// a peer's transition.
func (l *Lifecycle) TransitionAt(pad *Pad, target Target, now time.Time) error {
	if pad == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "pad not found")
	}
	if err := CanTransition(pad.Status, target); err != nil {
		return err
	}
	pad.Status = transitions[target].to
	pad.UpdatedAt = now
	switch target {
	case TargetSend:
		pad.SentAt = &now
	case TargetMarkReady:
		pad.ReadyAt = &now
	case TargetMarkServed:
		pad.ServedAt = &now
	case TargetSettle:
		served := now
		pad.ServedAt = &served
		pad.PaidAt = &now
	}
	return nil
}

// Remove deletes pad outright and returns its former index for undo.
func (l *Lifecycle) Remove(pad *Pad) (int, error) {
	if pad == nil {
		return -1, pkgerrors.New(pkgerrors.CodeNotFound, "pad not found")
	}
	_, idx, ok := l.store.Remove(pad.ID)
	if !ok {
		return -1, pkgerrors.New(pkgerrors.CodeNotFound, "pad not found").WithDetails(map[string]string{"id": pad.ID})
	}
	return idx, nil
}

// Archive moves a served pad from the active collection to history, exactly once.
func (l *Lifecycle) Archive(pad *Pad) (int, error) {
	if pad == nil {
		return -1, pkgerrors.New(pkgerrors.CodeNotFound, "pad not found")
	}
	if !pad.Status.IsTerminal() {
		return -1, invalidTransition(pad, "archive")
	}
	idx, err := l.Remove(pad)
	if err != nil {
		return -1, err
	}
	l.store.AppendHistory(pad)
	return idx, nil
}

// OpenPads returns the live open pads in store order.
func (l *Lifecycle) OpenPads() []*Pad {
	var open []*Pad
	for _, pad := range l.store.Pads() {
		if pad.Status == enums.PadStatusOpen {
			open = append(open, pad)
		}
	}
	return open
}

// SendAll sends every open pad in store order and returns them.
func (l *Lifecycle) SendAll() ([]*Pad, error) {
	open := l.OpenPads()
	for _, pad := range open {
		if err := l.Transition(pad, TargetSend); err != nil {
			return nil, err
		}
	}
	return open, nil
}

func invalidTransition(pad *Pad, action string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot %s a %s pad", action, pad.Status)).
		WithDetails(map[string]any{"from": pad.Status, "target": action})
}
