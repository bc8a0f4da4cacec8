package undo

import (
	"fmt"

	"github.com/angelmondragon/cuisync/internal/pads"
	"github.com/angelmondragon/cuisync/pkg/enums"
	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
)

// Entry captures the pre-mutation state needed to reverse one local operation.
type Entry struct {
	Kind enums.UndoKind
	// Pads holds deep copies of the affected pads before the mutation.
	Pads []*pads.Pad
	// OriginalIndex is where a removed pad sat in the store.
	OriginalIndex int
	// Label is shown to the user when the entry is undone.
	Label string
	// Archived is set when the mutation appended the pad to history.
	Archived bool
}

// Applied reports what an undo restored.
type Applied struct {
	Kind   enums.UndoKind `json:"kind"`
	Label  string         `json:"label"`
	PadIDs []string       `json:"padIds"`
	// Restored holds copies of the pads as they are after the undo, nil for removed ones.
	Restored []*pads.Pad `json:"-"`
}

// Manager is an unbounded single-step undo stack over a pad store.
// It only ever sees local mutations.
type Manager struct {
	store *pads.Store
	stack []Entry
}

func NewManager(store *pads.Store) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("pad store required")
	}
	return &Manager{store: store}, nil
}

// Len is the number of pending entries.
func (m *Manager) Len() int {
	return len(m.stack)
}

// Record pushes entry, deep-copying its pads so later mutations cannot alias them.
func (m *Manager) Record(entry Entry) error {
	if !entry.Kind.IsValid() {
		return fmt.Errorf("invalid undo kind %q", entry.Kind)
	}
	if len(entry.Pads) == 0 {
		return fmt.Errorf("undo entry %s has no pads", entry.Kind)
	}
	entry.Pads = pads.ClonePads(entry.Pads)
	m.stack = append(m.stack, entry)
	return nil
}

// Discard drops the most recent entry. Used when the mutation it guarded failed.
func (m *Manager) Discard() {
	if len(m.stack) > 0 {
		m.stack = m.stack[:len(m.stack)-1]
	}
}

// UndoLast pops the most recent entry and applies its inverse.
// An empty stack reports EMPTY_UNDO and changes nothing. An entry whose
// restore would reopen a table that meanwhile got another open pad is
// rejected with INVALID_TRANSITION and stays on the stack.
func (m *Manager) UndoLast() (*Applied, error) {
	if len(m.stack) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyUndo, "nothing to undo")
	}
	entry := m.stack[len(m.stack)-1]
	if err := m.checkOpenTables(entry); err != nil {
		return nil, err
	}
	m.stack = m.stack[:len(m.stack)-1]

	applied := &Applied{Kind: entry.Kind, Label: entry.Label}
	for _, snap := range entry.Pads {
		applied.PadIDs = append(applied.PadIDs, snap.ID)
	}

	switch entry.Kind {
	case enums.UndoKindPadCreated:
		for _, snap := range entry.Pads {
			m.store.Remove(snap.ID)
			applied.Restored = append(applied.Restored, nil)
		}

	case enums.UndoKindServed, enums.UndoKindDeleted, enums.UndoKindSettled:
		for _, snap := range entry.Pads {
			restored := snap.Clone()
			if !m.store.Replace(restored) {
				m.store.InsertAt(restored, entry.OriginalIndex)
			}
			if entry.Archived {
				m.store.RetractHistory(snap.ID)
			}
			applied.Restored = append(applied.Restored, restored.Clone())
		}

	default:
		for _, snap := range entry.Pads {
			restored := snap.Clone()
			if !m.store.Replace(restored) {
				// Removed meanwhile by a peer; nothing to overwrite.
				applied.Restored = append(applied.Restored, nil)
				continue
			}
			applied.Restored = append(applied.Restored, restored.Clone())
		}
	}
	return applied, nil
}

// checkOpenTables keeps one open pad per table across a restore.
func (m *Manager) checkOpenTables(entry Entry) error {
	if entry.Kind == enums.UndoKindPadCreated {
		return nil
	}
	reinserts := entry.Kind == enums.UndoKindServed || entry.Kind == enums.UndoKindDeleted || entry.Kind == enums.UndoKindSettled

	own := make(map[string]bool, len(entry.Pads))
	for _, snap := range entry.Pads {
		own[snap.ID] = true
	}
	for _, snap := range entry.Pads {
		if snap.Status != enums.PadStatusOpen {
			continue
		}
		if live, _ := m.store.Find(snap.ID); live == nil && !reinserts {
			continue
		}
		for _, other := range m.store.Pads() {
			if own[other.ID] || other.Table != snap.Table || other.Status != enums.PadStatusOpen {
				continue
			}
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("table %d already has an open order", snap.Table)).
				WithDetails(map[string]any{"table": snap.Table, "openPadId": other.ID, "undo": entry.Kind})
		}
	}
	return nil
}
