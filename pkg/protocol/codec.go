package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Common codec errors.
var (
	ErrInvalidMessage = errors.New("invalid message format")
	ErrUnknownCodec   = errors.New("unknown codec")
)

// Codec handles message encoding and decoding.
type Codec interface {
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte) (*Message, error)

	// Name is the value accepted by CodecByName.
	Name() string

	// Binary reports whether frames must be sent as binary.
	Binary() bool
}

// JSONCodec encodes messages as JSON text frames.
type JSONCodec struct{}

// NewJSONCodec creates a JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *JSONCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return validate(&msg)
}

func (c *JSONCodec) Name() string { return "json" }

func (c *JSONCodec) Binary() bool { return false }

// MsgPackCodec encodes messages as MessagePack binary frames.
type MsgPackCodec struct{}

// NewMsgPackCodec creates a MessagePack codec.
func NewMsgPackCodec() *MsgPackCodec {
	return &MsgPackCodec{}
}

func (c *MsgPackCodec) Encode(msg *Message) ([]byte, error) {
	return msgpack.Marshal(msg)
}

func (c *MsgPackCodec) Decode(data []byte) (*Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return validate(&msg)
}

func (c *MsgPackCodec) Name() string { return "msgpack" }

func (c *MsgPackCodec) Binary() bool { return true }

// CodecNames lists the names CodecByName accepts.
func CodecNames() []string {
	return []string{"json", "msgpack"}
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return NewJSONCodec(), nil
	case "msgpack":
		return NewMsgPackCodec(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

func validate(msg *Message) (*Message, error) {
	if msg.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrInvalidMessage)
	}
	return msg, nil
}
