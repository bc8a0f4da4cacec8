package padsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/cuisync/pkg/enums"
	"github.com/google/uuid"
)

// Message is the envelope exchanged between devices of one restaurant.
type Message struct {
	Type      enums.SyncMessageType `json:"type"`
	Payload   json.RawMessage       `json:"payload"`
	DeviceID  string                `json:"deviceId"`
	Timestamp int64                 `json:"timestamp"`
	EventID   string                `json:"eventId"`
}

// PadRef is the payload of pad-sent, pad-ready and pad-removed.
type PadRef struct {
	PadID string    `json:"padId"`
	Table int       `json:"table"`
	At    time.Time `json:"at"`
}

// Handler receives every message delivered by a Channel.
type Handler func(ctx context.Context, msg Message)

// Unsubscribe stops a subscription and waits for its delivery loop to exit.
type Unsubscribe func() error

// Channel is the transport shared by the devices of a restaurant.
type Channel interface {
	Post(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, handler Handler) (Unsubscribe, error)
}

// NewMessage wraps payload in an envelope stamped with device, time and a fresh event id.
func NewMessage(msgType enums.SyncMessageType, payload any, deviceID string, now time.Time) (Message, error) {
	if !msgType.IsValid() {
		return Message{}, fmt.Errorf("invalid sync message type %q", msgType)
	}
	raw, ok := payload.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		raw = data
	}
	return Message{
		Type:      msgType,
		Payload:   raw,
		DeviceID:  deviceID,
		Timestamp: now.UnixMilli(),
		EventID:   uuid.NewString(),
	}, nil
}
