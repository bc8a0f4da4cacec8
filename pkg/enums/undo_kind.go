package enums

import "fmt"

// UndoKind identifies the inverse operation applied when an undo entry is popped.
type UndoKind string

const (
	UndoKindPadCreated UndoKind = "pad-created"
	UndoKindItemAdded  UndoKind = "item-added"
	UndoKindSend       UndoKind = "send"
	UndoKindSendAll    UndoKind = "send-all"
	UndoKindReady      UndoKind = "ready"
	UndoKindPayment    UndoKind = "payment"
	UndoKindServed     UndoKind = "served"
	UndoKindDeleted    UndoKind = "deleted"
	UndoKindSettled    UndoKind = "settled"
	UndoKindDetails    UndoKind = "details"
)

var validUndoKinds = []UndoKind{
	UndoKindPadCreated,
	UndoKindItemAdded,
	UndoKindSend,
	UndoKindSendAll,
	UndoKindReady,
	UndoKindPayment,
	UndoKindServed,
	UndoKindDeleted,
	UndoKindSettled,
	UndoKindDetails,
}

// String implements fmt.Stringer.
func (u UndoKind) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UndoKind.
func (u UndoKind) IsValid() bool {
	for _, candidate := range validUndoKinds {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUndoKind converts raw input into a UndoKind.
func ParseUndoKind(value string) (UndoKind, error) {
	for _, candidate := range validUndoKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid undo kind %q", value)
}
