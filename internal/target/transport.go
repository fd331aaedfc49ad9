package target

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stellar-aria/oledview/internal/rsp"
)

var (
	ErrConnect  = errors.New("target: connect failed")
	ErrRejected = errors.New("target: remote kept rejecting packet")
)

// receive state machine, one packet reassembled at a time
const (
	rxIdle = iota
	rxPayload
	rxSumHigh
	rxSumLow
)

// Transport owns the byte stream to the RSP server and its read-side
// buffering. It is not safe for concurrent use; the protocol is strictly
// request/response with one request outstanding.
type Transport struct {
	conn   net.Conn
	cfg    Config
	closed bool

	rxBuf   [4096]byte
	rxIndex int
	rxLen   int

	rxState int
	rxKind  rsp.Kind
	rxPkt   []byte
	rxSum   [2]byte
}

// Dial connects to the RSP server at addr, retrying with backoff up to
// cfg.MaxConnectAttempts, and opens the session with a positive
// acknowledgement. Failure here is fatal to startup.
func Dial(addr string, cfg Config) (*Transport, error) {
	cfg = cfg.WithDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var conn net.Conn
	var err error
	for attempt := 1; ; attempt++ {
		conn, err = net.DialTimeout("tcp", addr, cfg.ConnectTimeout)
		if err == nil {
			break
		}
		if attempt >= cfg.MaxConnectAttempts {
			return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrConnect, addr, attempt, err)
		}
		delay := cfg.Backoff.Delay(attempt, rng)
		log.Warn().Str("addr", addr).Int("attempt", attempt).
			Dur("retry_in", delay).Err(err).Msg("dial failed")
		time.Sleep(delay)
	}

	t := &Transport{conn: conn, cfg: cfg}
	if _, err := conn.Write([]byte{'+'}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, addr, err)
	}
	log.Info().Str("addr", addr).Msg("connected to RSP server")
	return t, nil
}

// Closed reports whether the stream has been observed closed.
func (t *Transport) Closed() bool { return t.closed }

// Send writes the encoded packet synchronously. Framed packets wait for the
// remote acknowledgement and are resent on '-', bounded by MaxSendAttempts.
// Bare acknowledgements are fire-and-forget.
func (t *Transport) Send(p rsp.Packet) error {
	if t.closed {
		return net.ErrClosed
	}
	wire := rsp.Encode(p)
	for attempt := 1; ; attempt++ {
		if t.cfg.WriteTimeout > 0 {
			t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
		}
		_, err := t.conn.Write(wire)
		t.conn.SetWriteDeadline(time.Time{})
		if err != nil {
			return t.noteErr(err)
		}
		if p.Kind == rsp.KindAck {
			return nil
		}

		ack, err := t.readByte(t.cfg.AckTimeout)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				if attempt >= t.cfg.MaxSendAttempts {
					return fmt.Errorf("target: no acknowledgement after %d attempts: %w", attempt, err)
				}
				continue
			}
			return t.noteErr(err)
		}
		switch ack {
		case '+':
			return nil
		case '-':
			if attempt >= t.cfg.MaxSendAttempts {
				return fmt.Errorf("%w after %d attempts", ErrRejected, attempt)
			}
		default:
			return fmt.Errorf("target: unexpected acknowledgement byte %#02x", ack)
		}
	}
}

// ReceiveNext blocks until one full packet is framed, the stream closes, or
// a read error occurs. A closed stream returns (nil, nil). A checksum
// mismatch is answered with '-' and surfaced as rsp.ErrChecksum without
// requesting a resend; this client treats it as fatal.
func (t *Transport) ReceiveNext() (*rsp.Packet, error) {
	if t.closed {
		return nil, nil
	}
	for {
		b, err := t.readByte(0)
		if err != nil {
			if isClosed(err) {
				t.closed = true
				return nil, nil
			}
			return nil, err
		}

		switch t.rxState {
		case rxIdle:
			switch b {
			case '$':
				t.rxState = rxPayload
				t.rxKind = rsp.KindCommand
				t.rxPkt = t.rxPkt[:0]
			case '%':
				t.rxState = rxPayload
				t.rxKind = rsp.KindNotification
				t.rxPkt = t.rxPkt[:0]
			}
			// stray '+'/'-' between packets is ignored
		case rxPayload:
			if b == '#' {
				t.rxState = rxSumHigh
			} else {
				t.rxPkt = append(t.rxPkt, b)
			}
		case rxSumHigh:
			t.rxSum[0] = b
			t.rxState = rxSumLow
		case rxSumLow:
			t.rxSum[1] = b
			t.rxState = rxIdle

			if field := rsp.ChecksumField(t.rxPkt); t.rxSum != field {
				_ = t.Send(rsp.Nack())
				return nil, fmt.Errorf("%w: computed %s, packet carries %q", rsp.ErrChecksum, field[:], t.rxSum[:])
			}
			if err := t.Send(rsp.Ack()); err != nil && !isClosed(err) {
				return nil, err
			}
			return &rsp.Packet{Kind: t.rxKind, Payload: append([]byte(nil), t.rxPkt...)}, nil
		}
	}
}

// Interrupt sends the raw interrupt byte (0x03) and drains the stop reply.
// It backs the optional halt-during-read hook.
func (t *Transport) Interrupt() error {
	if t.closed {
		return nil
	}
	if _, err := t.conn.Write([]byte{0x03}); err != nil {
		return t.noteErr(err)
	}
	_, err := t.ReceiveNext()
	return err
}

// Continue resumes target execution. The server acknowledges the command
// but sends no reply until the target stops again. A closed stream is a
// no-op, same as Interrupt, so the halt hook stays inert once the peer is
// gone.
func (t *Transport) Continue() error {
	if t.closed {
		return nil
	}
	return t.Send(rsp.Command([]byte{'c'}))
}

// Close detaches from the server (best effort) and closes the stream.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	if !t.closed {
		_ = t.Send(rsp.Command([]byte{'D'}))
		t.closed = true
	}
	return t.conn.Close()
}

// readByte pulls one byte through the receive buffer, refilling from the
// connection when drained. A non-zero deadline bounds the refill read.
func (t *Transport) readByte(deadline time.Duration) (byte, error) {
	if t.rxIndex >= t.rxLen {
		if deadline > 0 {
			t.conn.SetReadDeadline(time.Now().Add(deadline))
			defer t.conn.SetReadDeadline(time.Time{})
		}
		n, err := t.conn.Read(t.rxBuf[:])
		if err != nil {
			return 0, err
		}
		t.rxLen = n
		t.rxIndex = 0
	}
	b := t.rxBuf[t.rxIndex]
	t.rxIndex++
	return b, nil
}

func (t *Transport) noteErr(err error) error {
	if isClosed(err) {
		t.closed = true
	}
	return err
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
