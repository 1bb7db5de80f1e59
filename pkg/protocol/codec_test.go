package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		binary bool
	}{
		{"", "json", false},
		{"json", "json", false},
		{"msgpack", "msgpack", true},
	}
	for _, tt := range tests {
		c, err := CodecByName(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.Name())
		assert.Equal(t, tt.binary, c.Binary())
	}

	_, err := CodecByName("phoenix")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestCodecs_ClientEvents(t *testing.T) {
	for _, c := range []Codec{NewJSONCodec(), NewMsgPackCodec()} {
		t.Run(c.Name(), func(t *testing.T) {
			in := NewMessage("lv:1", EventInput).WithRef("7")
			in.Set("name", "email").Set("value", "ada@example.com")

			data, err := c.Encode(in)
			require.NoError(t, err)

			out, err := c.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, "7", out.Ref)
			assert.Equal(t, "lv:1", out.Topic)
			assert.Equal(t, EventInput, out.Event)
			assert.Equal(t, "email", out.PayloadString("name"))
			assert.Equal(t, "ada@example.com", out.PayloadString("value"))
			assert.Equal(t, in.Timestamp, out.Timestamp)
		})
	}
}

func TestCodecs_RejectMissingEvent(t *testing.T) {
	_, err := NewJSONCodec().Decode([]byte(`{"topic":"t"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = NewJSONCodec().Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	data, err := NewMsgPackCodec().Encode(&Message{Topic: "t"})
	require.NoError(t, err)
	_, err = NewMsgPackCodec().Decode(data)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestMessage_Helpers(t *testing.T) {
	m := SubmittedMessage("lv:1", map[string]string{"email": "a@b.c"})
	assert.Equal(t, EventSubmitted, m.Event)
	assert.Equal(t, map[string]any{"email": "a@b.c"}, m.Payload["values"])

	e := ErrorMessage("lv:1", "boom")
	assert.Equal(t, "boom", e.PayloadString("reason"))
	assert.Empty(t, e.PayloadString("missing"))

	clone := e.Clone()
	clone.Set("reason", "changed")
	assert.Equal(t, "boom", e.PayloadString("reason"))

	p := PatchMessage("lv:1", []any{map[string]any{"op": "addClass"}})
	assert.Equal(t, EventPatch, p.Event)
	assert.Len(t, p.Payload["commands"], 1)
}
