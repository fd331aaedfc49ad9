package rsp

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrChecksum = errors.New("rsp: checksum mismatch")
	ErrFraming  = errors.New("rsp: malformed packet framing")
)

// Kind tags one decoded unit of protocol exchange.
type Kind int

const (
	// KindCommand is a data-carrying packet framed $<payload>#<checksum>.
	KindCommand Kind = iota
	// KindNotification is an unsolicited packet framed %<payload>#<checksum>.
	KindNotification
	// KindAck is a bare acknowledgement byte outside the delimited framing,
	// '+' (accepted) or '-' (rejected).
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindNotification:
		return "notification"
	case KindAck:
		return "ack"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Packet is one unit of protocol exchange. The checksum is implicit: it is
// recomputed from Payload on encode and verified on decode.
type Packet struct {
	Kind    Kind
	Payload []byte
}

// Command wraps payload in a data-carrying packet.
func Command(payload []byte) Packet {
	return Packet{Kind: KindCommand, Payload: payload}
}

// Ack is the positive acknowledgement packet.
func Ack() Packet { return Packet{Kind: KindAck, Payload: []byte{'+'}} }

// Nack is the negative acknowledgement packet.
func Nack() Packet { return Packet{Kind: KindAck, Payload: []byte{'-'}} }

// Checksum is the RSP packet checksum: the sum of the payload bytes mod 256.
func Checksum(payload []byte) uint8 {
	var sum uint8
	for _, b := range payload {
		sum += b
	}
	return sum
}

// ChecksumField renders the checksum as the two lowercase hex digits that
// appear on the wire. Verification compares these bytes literally: an
// uppercase digit parses to the same value but is never emitted, so treating
// it as equal would let a single-bit corruption through.
func ChecksumField(payload []byte) [2]byte {
	const digits = "0123456789abcdef"
	sum := Checksum(payload)
	return [2]byte{digits[sum>>4], digits[sum&0x0f]}
}

// Encode renders p to its wire form. Commands and notifications are framed
// with a start delimiter, the payload, '#' and a two-hex-digit checksum.
// Acknowledgements encode to their single bare byte.
func Encode(p Packet) []byte {
	switch p.Kind {
	case KindAck:
		if len(p.Payload) == 1 && p.Payload[0] == '-' {
			return []byte{'-'}
		}
		return []byte{'+'}
	case KindNotification:
		return fmt.Appendf(nil, "%%%s#%02x", p.Payload, Checksum(p.Payload))
	default:
		return fmt.Appendf(nil, "$%s#%02x", p.Payload, Checksum(p.Payload))
	}
}

// Decode parses exactly one packet out of wire. A lone '+' or '-' decodes as
// a KindAck packet. Otherwise Decode scans for the start delimiter, consumes
// to the end delimiter and verifies the two checksum bytes literally against
// the lowercase rendering of the recomputed sum.
func Decode(wire []byte) (Packet, error) {
	if len(wire) == 0 {
		return Packet{}, fmt.Errorf("%w: empty input", ErrFraming)
	}
	if wire[0] == '+' || wire[0] == '-' {
		return Packet{Kind: KindAck, Payload: []byte{wire[0]}}, nil
	}

	kind := KindCommand
	start := bytes.IndexByte(wire, '$')
	if n := bytes.IndexByte(wire, '%'); n >= 0 && (start < 0 || n < start) {
		start = n
		kind = KindNotification
	}
	if start < 0 {
		return Packet{}, fmt.Errorf("%w: no start delimiter", ErrFraming)
	}

	end := bytes.IndexByte(wire[start:], '#')
	if end < 0 {
		return Packet{}, fmt.Errorf("%w: no end delimiter", ErrFraming)
	}
	end += start
	if end+2 >= len(wire) {
		return Packet{}, fmt.Errorf("%w: truncated checksum", ErrFraming)
	}

	payload := wire[start+1 : end]
	if field := ChecksumField(payload); wire[end+1] != field[0] || wire[end+2] != field[1] {
		return Packet{}, fmt.Errorf("%w: computed %s, packet carries %q", ErrChecksum, field[:], wire[end+1:end+3])
	}

	return Packet{Kind: kind, Payload: append([]byte(nil), payload...)}, nil
}
