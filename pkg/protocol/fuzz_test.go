package protocol

import (
	"reflect"
	"testing"
)

func FuzzJSONDecode(f *testing.F) {
	f.Add([]byte(`{"ref":"1","topic":"lv:abc","event":"click","payload":{"target":"next"}}`))
	f.Add([]byte(`{"ref":"","topic":"","event":"submit","payload":null}`))
	f.Add([]byte(`{"topic":"t","event":"input","payload":{"name":"email","value":"a@b.c"}}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`[]`))
	f.Add([]byte(`null`))
	f.Add([]byte(``))
	f.Add([]byte(`{malformed`))
	f.Add([]byte(`{"ref": 123}`))

	codec := NewJSONCodec()

	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := codec.Decode(data)
		if err != nil {
			return
		}

		out, err := codec.Encode(msg)
		if err != nil {
			return
		}

		msg2, err := codec.Decode(out)
		if err != nil {
			t.Errorf("failed to re-parse serialized message: %v", err)
			return
		}
		if !messagesEqual(msg, msg2) {
			t.Errorf("roundtrip mismatch: %+v != %+v", msg, msg2)
		}
	})
}

func FuzzMsgPackDecode(f *testing.F) {
	codec := NewMsgPackCodec()
	seed, _ := codec.Encode(NewMessage("lv:abc", EventClick).Set("target", TargetBack))
	f.Add(seed)
	f.Add([]byte{0x80})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := codec.Decode(data)
		if err != nil {
			return
		}
		out, err := codec.Encode(msg)
		if err != nil {
			return
		}
		msg2, err := codec.Decode(out)
		if err != nil {
			t.Errorf("failed to decode encoded message: %v", err)
			return
		}
		if msg.Ref != msg2.Ref || msg.Topic != msg2.Topic || msg.Event != msg2.Event {
			t.Errorf("roundtrip mismatch")
		}
	})
}

func messagesEqual(a, b *Message) bool {
	if a.Ref != b.Ref || a.Topic != b.Topic || a.Event != b.Event {
		return false
	}
	if len(a.Payload) != len(b.Payload) {
		return false
	}
	for k, v := range a.Payload {
		if !reflect.DeepEqual(v, b.Payload[k]) {
			return false
		}
	}
	return true
}
