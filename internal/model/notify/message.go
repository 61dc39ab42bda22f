package notify

import (
	"encoding/json"
	"errors"
)

// Message types understood on the wire.
const (
	TypeWelcome   = "welcome"
	TypeBroadcast = "broadcast"
)

// BroadcastGreeting is the fixed payload carried by client broadcasts.
const BroadcastGreeting = "Hello, everyone!"

// ErrMalformedFrame reports a frame that is not valid JSON.
var ErrMalformedFrame = errors.New("malformed frame")

// Message is a tagged value exchanged between peers.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewBroadcast returns the broadcast message sent by clients.
func NewBroadcast() Message {
	return Message{Type: TypeBroadcast, Content: BroadcastGreeting}
}

// Encode serializes the message as a text frame.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Parse decodes a raw text frame. Only invalid JSON is an error; well-formed
// JSON that is not an object, or whose fields are not strings, yields a
// Message with whatever string fields could be read.
func Parse(raw []byte) (Message, error) {
	if !json.Valid(raw) {
		return Message{}, ErrMalformedFrame
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Message{}, nil
	}

	return Message{
		Type:    stringField(fields["type"]),
		Content: contentField(fields["content"]),
	}, nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// contentField keeps non-string content as its JSON text.
func contentField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}
