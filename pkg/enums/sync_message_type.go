package enums

import "fmt"

// SyncMessageType tags a message exchanged between devices.
type SyncMessageType string

const (
	SyncMessageTypePadUpdated       SyncMessageType = "pad-updated"
	SyncMessageTypePadSent          SyncMessageType = "pad-sent"
	SyncMessageTypePadReady         SyncMessageType = "pad-ready"
	SyncMessageTypePadRemoved       SyncMessageType = "pad-removed"
	SyncMessageTypeTableUpdated     SyncMessageType = "table-updated"
	SyncMessageTypeMenuUpdated      SyncMessageType = "menu-updated"
	SyncMessageTypeInventoryUpdated SyncMessageType = "inventory-updated"
)

var validSyncMessageTypes = []SyncMessageType{
	SyncMessageTypePadUpdated,
	SyncMessageTypePadSent,
	SyncMessageTypePadReady,
	SyncMessageTypePadRemoved,
	SyncMessageTypeTableUpdated,
	SyncMessageTypeMenuUpdated,
	SyncMessageTypeInventoryUpdated,
}

// String implements fmt.Stringer.
func (s SyncMessageType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SyncMessageType.
func (s SyncMessageType) IsValid() bool {
	for _, candidate := range validSyncMessageTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSyncMessageType converts raw input into a SyncMessageType.
func ParseSyncMessageType(value string) (SyncMessageType, error) {
	for _, candidate := range validSyncMessageTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync message type %q", value)
}
