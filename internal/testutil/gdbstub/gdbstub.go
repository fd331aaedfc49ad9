// Package gdbstub provides a scriptable in-process RSP server for tests.
// It speaks just enough of the protocol to exercise the transport: framed
// commands, acknowledgements, memory reads from a fixed address-space
// image, and a handful of failure modes.
package gdbstub

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stellar-aria/oledview/internal/rsp"
)

// Stub serves the memory-read subset of the RSP from registered regions.
type Stub struct {
	ln net.Listener

	mu      sync.Mutex
	regions []region

	// CloseOnCommand drops the connection on the first framed command
	// without acknowledging it, for closed-stream scenarios.
	CloseOnCommand bool
	// CorruptChecksums makes every reply carry a wrong checksum.
	CorruptChecksums bool
	// UppercaseChecksums renders reply checksums with uppercase hex digits,
	// which differ from the wire form bit-for-bit while parsing to the same
	// value.
	UppercaseChecksums bool
	// ReplyOverride, when set, replaces the reply payload for every framed
	// command.
	ReplyOverride func(cmd string) []byte
}

type region struct {
	addr uint32
	data []byte
}

// Listen starts the stub on a loopback port and serves connections until
// the test ends.
func Listen(t *testing.T) *Stub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("gdbstub: listen: %v", err)
	}
	s := &Stub{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *Stub) Addr() string { return s.ln.Addr().String() }

// SetMemory registers (or replaces) the readable region at addr.
func (s *Stub) SetMemory(addr uint32, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.regions {
		if s.regions[i].addr == addr {
			s.regions[i].data = append([]byte(nil), data...)
			return
		}
	}
	s.regions = append(s.regions, region{addr: addr, data: append([]byte(nil), data...)})
}

// readAt returns up to n bytes starting at addr, short when the region
// runs out. Unmapped addresses report no data.
func (s *Stub) readAt(addr uint32, n int) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regions {
		if addr < r.addr || addr >= r.addr+uint32(len(r.data)) {
			continue
		}
		off := int(addr - r.addr)
		avail := len(r.data) - off
		if n > avail {
			n = avail
		}
		return r.data[off : off+n], true
	}
	return nil, false
}

func (s *Stub) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.handle(conn)
	}
}

func (s *Stub) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case '+', '-':
			// acks need no action
		case 0x03:
			s.reply(conn, []byte("S05"))
		case '$':
			payload, ok := readFramed(r)
			if !ok {
				return
			}
			if s.CloseOnCommand {
				return
			}
			if _, err := conn.Write([]byte{'+'}); err != nil {
				return
			}
			s.dispatch(conn, string(payload))
		}
	}
}

func readFramed(r *bufio.Reader) ([]byte, bool) {
	var payload []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, false
		}
		if b == '#' {
			break
		}
		payload = append(payload, b)
	}
	var sum [2]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return nil, false
	}
	return payload, true
}

func (s *Stub) dispatch(conn net.Conn, cmd string) {
	if s.ReplyOverride != nil {
		s.reply(conn, s.ReplyOverride(cmd))
		return
	}
	switch {
	case strings.HasPrefix(cmd, "m"):
		addr, n, err := parseRead(cmd)
		if err != nil {
			s.reply(conn, []byte("E01"))
			return
		}
		data, ok := s.readAt(addr, n)
		if !ok {
			s.reply(conn, []byte("E01"))
			return
		}
		out := make([]byte, hex.EncodedLen(len(data)))
		hex.Encode(out, data)
		s.reply(conn, out)
	case cmd == "c":
		// no reply until the target stops again
	case cmd == "D":
		s.reply(conn, []byte("OK"))
	default:
		s.reply(conn, nil) // empty reply: not supported
	}
}

func (s *Stub) reply(conn net.Conn, payload []byte) {
	wire := rsp.Encode(rsp.Command(payload))
	switch {
	case s.CorruptChecksums:
		wire = fmt.Appendf(nil, "$%s#%02x", payload, rsp.Checksum(payload)+1)
	case s.UppercaseChecksums:
		wire = fmt.Appendf(nil, "$%s#%02X", payload, rsp.Checksum(payload))
	}
	conn.Write(wire)
}

func parseRead(cmd string) (addr uint32, n int, err error) {
	parts := strings.SplitN(strings.TrimPrefix(cmd, "m"), ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("gdbstub: bad read command %q", cmd)
	}
	a, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, 0, err
	}
	l, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, 0, err
	}
	return uint32(a), int(l), nil
}
