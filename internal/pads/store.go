package pads

import "github.com/angelmondragon/cuisync/pkg/enums"

// Store is one device's in-memory collection of active pads, in display
// order, plus the append-only history of archived pads.
//
// Store does no locking. The engine serializes every access.
type Store struct {
	pads    []*Pad
	history []*Pad
}

func NewStore() *Store {
	return &Store{}
}

// Len returns the number of active pads.
func (s *Store) Len() int {
	return len(s.pads)
}

// Pads returns the live pads. Callers must not retain them past the current operation.
func (s *Store) Pads() []*Pad {
	out := make([]*Pad, len(s.pads))
	copy(out, s.pads)
	return out
}

// Snapshot returns deep copies of the active pads.
func (s *Store) Snapshot() []*Pad {
	return ClonePads(s.pads)
}

// History returns deep copies of the archived pads, oldest first.
func (s *Store) History() []*Pad {
	return ClonePads(s.history)
}

// Find returns the live pad with id and its index, or nil and -1.
func (s *Store) Find(id string) (*Pad, int) {
	for i, pad := range s.pads {
		if pad.ID == id {
			return pad, i
		}
	}
	return nil, -1
}

// OpenPadForTable returns the open pad for table, if any.
func (s *Store) OpenPadForTable(table int) *Pad {
	for _, pad := range s.pads {
		if pad.Table == table && pad.Status == enums.PadStatusOpen {
			return pad
		}
	}
	return nil
}

// Append adds pad at the end of the collection.
func (s *Store) Append(pad *Pad) {
	s.pads = append(s.pads, pad)
}

// InsertAt puts pad back at index, clamped to the current bounds.
func (s *Store) InsertAt(pad *Pad, index int) {
	if index < 0 {
		index = 0
	}
	if index > len(s.pads) {
		index = len(s.pads)
	}
	s.pads = append(s.pads, nil)
	copy(s.pads[index+1:], s.pads[index:])
	s.pads[index] = pad
}

// Remove deletes the pad with id and reports its former index.
func (s *Store) Remove(id string) (*Pad, int, bool) {
	pad, idx := s.Find(id)
	if pad == nil {
		return nil, -1, false
	}
	s.pads = append(s.pads[:idx], s.pads[idx+1:]...)
	return pad, idx, true
}

// Replace overwrites the pad sharing pad.ID in place. It reports false when absent.
func (s *Store) Replace(pad *Pad) bool {
	_, idx := s.Find(pad.ID)
	if idx < 0 {
		return false
	}
	s.pads[idx] = pad
	return true
}

// AppendHistory records an archived pad.
func (s *Store) AppendHistory(pad *Pad) {
	s.history = append(s.history, pad)
}

// RetractHistory removes the most recent history record for id.
func (s *Store) RetractHistory(id string) bool {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ID == id {
			s.history = append(s.history[:i], s.history[i+1:]...)
			return true
		}
	}
	return false
}

// InHistory reports whether id has been archived.
func (s *Store) InHistory(id string) bool {
	for _, pad := range s.history {
		if pad.ID == id {
			return true
		}
	}
	return false
}

// Restore replaces the whole state, used when loading persisted pads.
func (s *Store) Restore(active, history []*Pad) {
	s.pads = ClonePads(active)
	s.history = ClonePads(history)
}
