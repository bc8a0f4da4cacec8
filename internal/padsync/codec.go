package padsync

import (
	"encoding/json"
	"fmt"
)

// Encode renders msg in its wire form.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode sync message: %w", err)
	}
	return data, nil
}

// Decode parses a wire envelope.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode sync message: %w", err)
	}
	if !msg.Type.IsValid() {
		return Message{}, fmt.Errorf("invalid sync message type %q", msg.Type)
	}
	return msg, nil
}
