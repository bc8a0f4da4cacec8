package padsync

import "github.com/angelmondragon/cuisync/internal/pads"

// MergePolicy decides what replaces the local copy of a pad when a peer's
// version arrives. local is nil when the pad is unknown on this device.
// The returned pad is stored as is and must not alias incoming.
type MergePolicy func(local, incoming *pads.Pad) *pads.Pad

// LastWriterWins takes the incoming pad whole. Ordering is arrival order,
// not wall clock, so two devices editing the same pad concurrently keep
// whichever update reached them last.
func LastWriterWins(_, incoming *pads.Pad) *pads.Pad {
	return incoming.Clone()
}
