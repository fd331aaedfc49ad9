package rsp

import (
	"bytes"
	"testing"
)

func FuzzDecode(f *testing.F) {
	f.Add([]byte("$m20001234,180#d1"))
	f.Add([]byte("$OK#9a"))
	f.Add([]byte("+"))
	f.Add([]byte("-"))
	f.Add([]byte("%Stop:T05#c3"))
	f.Add([]byte("$#00"))
	f.Add([]byte("garbage$payload#xx"))

	f.Fuzz(func(t *testing.T, wire []byte) {
		p, err := Decode(wire)
		if err != nil {
			return
		}
		// Whatever decodes must survive a re-encode/decode cycle unchanged.
		again, err := Decode(Encode(p))
		if err != nil {
			t.Fatalf("re-decode of %q: %v", Encode(p), err)
		}
		if again.Kind != p.Kind || !bytes.Equal(again.Payload, p.Payload) {
			t.Fatalf("round trip drift: %v %q -> %v %q", p.Kind, p.Payload, again.Kind, again.Payload)
		}
	})
}
