package enums

import "fmt"

// PadStatus is the workflow position of a pad.
type PadStatus string

const (
	PadStatusOpen   PadStatus = "open"
	PadStatusSent   PadStatus = "sent"
	PadStatusReady  PadStatus = "ready"
	PadStatusServed PadStatus = "served"
)

var validPadStatuses = []PadStatus{
	PadStatusOpen,
	PadStatusSent,
	PadStatusReady,
	PadStatusServed,
}

// String implements fmt.Stringer.
func (p PadStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PadStatus.
func (p PadStatus) IsValid() bool {
	for _, candidate := range validPadStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePadStatus converts raw input into a PadStatus.
func ParsePadStatus(value string) (PadStatus, error) {
	for _, candidate := range validPadStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pad status %q", value)
}

// IsTerminal reports whether the pad leaves the active collection in this status.
func (p PadStatus) IsTerminal() bool {
	return p == PadStatusServed
}
