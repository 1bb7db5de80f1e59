// Package protocol defines the messages exchanged between a browser and a
// live form wizard session.
package protocol

import (
	"time"
)

// Client to server events.
const (
	EventClick  = "click"
	EventInput  = "input"
	EventSubmit = "submit"
)

// Server to client events.
const (
	EventPatch     = "patch"
	EventSubmitted = "submitted"
	EventError     = "error"
)

// Roles carried in the target payload of a click.
const (
	TargetBack = "back"
	TargetNext = "next"
)

// Message is one frame on the live connection.
type Message struct {
	// Ref correlates a server reply with the client message that caused it.
	Ref string `json:"ref,omitempty" msgpack:"ref,omitempty"`

	// Topic is the session the message belongs to.
	Topic string `json:"topic" msgpack:"topic"`

	Event   string         `json:"event" msgpack:"event"`
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`

	// Timestamp in unix milliseconds.
	Timestamp int64 `json:"ts,omitempty" msgpack:"ts,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(topic, event string) *Message {
	return &Message{
		Topic:     topic,
		Event:     event,
		Payload:   make(map[string]any),
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithRef sets the correlation ref.
func (m *Message) WithRef(ref string) *Message {
	m.Ref = ref
	return m
}

// WithPayload replaces the payload.
func (m *Message) WithPayload(payload map[string]any) *Message {
	m.Payload = payload
	return m
}

// Set stores a single payload value.
func (m *Message) Set(key string, value any) *Message {
	if m.Payload == nil {
		m.Payload = make(map[string]any)
	}
	m.Payload[key] = value
	return m
}

// PayloadString returns the payload value for key when it is a string.
func (m *Message) PayloadString(key string) string {
	if m.Payload == nil {
		return ""
	}
	if v, ok := m.Payload[key].(string); ok {
		return v
	}
	return ""
}

// Clone copies the message and its top-level payload.
func (m *Message) Clone() *Message {
	clone := *m
	if m.Payload != nil {
		clone.Payload = make(map[string]any, len(m.Payload))
		for k, v := range m.Payload {
			clone.Payload[k] = v
		}
	}
	return &clone
}

// PatchMessage carries client commands.
func PatchMessage(topic string, commands []any) *Message {
	return NewMessage(topic, EventPatch).Set("commands", commands)
}

// SubmittedMessage reports the submitted form values.
func SubmittedMessage(topic string, values map[string]string) *Message {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return NewMessage(topic, EventSubmitted).Set("values", out)
}

// ErrorMessage reports a failure to the client.
func ErrorMessage(topic, reason string) *Message {
	return NewMessage(topic, EventError).Set("reason", reason)
}
