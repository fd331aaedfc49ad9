package target

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/stellar-aria/oledview/internal/rsp"
)

var (
	ErrBadPayload  = errors.New("target: malformed hex payload")
	ErrTargetReply = errors.New("target: error reply from server")
)

// Exchange sends one command and blocks for its response payload. A nil
// payload with a nil error reports a closed stream.
func (t *Transport) Exchange(cmd []byte) ([]byte, error) {
	if err := t.Send(rsp.Command(cmd)); err != nil {
		if isClosed(err) {
			return nil, nil
		}
		return nil, err
	}
	pkt, err := t.ReceiveNext()
	if err != nil {
		return nil, err
	}
	if pkt == nil {
		return nil, nil
	}
	payload, err := rsp.ExpandRLE(pkt.Payload)
	if err != nil {
		return nil, err
	}
	if err := replyError(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// replyError detects E<xx> replies.
func replyError(payload []byte) error {
	if len(payload) != 3 || payload[0] != 'E' {
		return nil
	}
	code, err := strconv.ParseUint(string(payload[1:]), 16, 8)
	if err != nil {
		return nil
	}
	return fmt.Errorf("%w: E%02x", ErrTargetReply, uint8(code))
}

// ReadMemory reads length bytes at addr with m<addr-hex>,<len-hex>
// commands, chunked by MaxReadChunk. A stream that closes mid-request
// yields an empty block so that a single dropped frame renders stale
// instead of crashing the loop. Short responses are tolerated and returned
// as-is; a malformed hex payload is fatal.
func (t *Transport) ReadMemory(addr uint32, length uint32) ([]byte, error) {
	out := make([]byte, 0, length)
	for length > 0 {
		n := length
		if max := uint32(t.cfg.MaxReadChunk); n > max {
			n = max
		}
		resp, err := t.Exchange(fmt.Appendf(nil, "m%x,%x", addr, n))
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return []byte{}, nil
		}
		buf := make([]byte, hex.DecodedLen(len(resp)))
		k, err := hex.Decode(buf, resp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		out = append(out, buf[:k]...)
		if uint32(k) < n {
			break
		}
		addr += n
		length -= n
	}
	return out, nil
}

// ReadPointer dereferences a 32-bit little-endian pointer in target memory.
// stale reports a closed-stream read that produced no data.
func (t *Transport) ReadPointer(addr uint32) (val uint32, stale bool, err error) {
	raw, err := t.ReadMemory(addr, 4)
	if err != nil {
		return 0, false, err
	}
	if len(raw) < 4 {
		return 0, true, nil
	}
	return binary.LittleEndian.Uint32(raw), false, nil
}
