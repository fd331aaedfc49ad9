package mirror

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stellar-aria/oledview/internal/display"
	"github.com/stellar-aria/oledview/internal/framebuf"
	"github.com/stellar-aria/oledview/internal/observability"
	"github.com/stellar-aria/oledview/internal/rsp"
	"github.com/stellar-aria/oledview/internal/target"
)

// Reader is the slice of the transport the loop needs.
type Reader interface {
	ReadPointer(addr uint32) (val uint32, stale bool, err error)
	ReadMemory(addr uint32, length uint32) ([]byte, error)
	Interrupt() error
	Continue() error
}

// Config shapes one mirror loop.
type Config struct {
	Geometry framebuf.Geometry
	// Hz is the refresh frequency.
	Hz float64
	// PointerAddr is the resolved address of the framebuffer pointer. The
	// pointed-to buffer can move while the firmware runs, so the pointer is
	// dereferenced every tick rather than cached.
	PointerAddr uint32
	// HaltDuringRead interrupts the target around each read and resumes it
	// afterwards, for targets that tear their framebuffer mid-write.
	HaltDuringRead bool
	// Target labels log lines and metrics.
	Target string
}

func (c Config) WithDefaults() Config {
	if c.Hz <= 0 {
		c.Hz = 24
	}
	return c
}

// Interval is the tick interval derived from Hz.
func (c Config) Interval() time.Duration {
	return time.Duration(float64(time.Second) / c.Hz)
}

// Loop owns the DisplayBuffer and the frame clock for one mirrored panel.
type Loop struct {
	cfg  Config
	rd   Reader
	sink display.Sink

	buf   framebuf.DisplayBuffer
	clock frameClock

	frames      atomic.Uint64
	staleFrames atomic.Uint64
}

func New(cfg Config, rd Reader, sink display.Sink) (*Loop, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	return &Loop{
		cfg:  cfg,
		rd:   rd,
		sink: sink,
		buf:  framebuf.NewDisplayBuffer(cfg.Geometry),
		clock: frameClock{
			interval: cfg.Interval(),
			now:      time.Now,
			sleep:    time.Sleep,
		},
	}, nil
}

// Stats is a counter snapshot for the debug endpoint. Safe to call from
// another goroutine.
func (l *Loop) Stats() map[string]any {
	return map[string]any{
		"target":       l.cfg.Target,
		"hz":           l.cfg.Hz,
		"width":        l.cfg.Geometry.Width,
		"height":       l.cfg.Geometry.Height,
		"frames":       l.frames.Load(),
		"stale_frames": l.staleFrames.Load(),
	}
}

// Run drives the loop until the sink requests quit or an unrecoverable
// error stops it.
func (l *Loop) Run() error {
	log.Info().Str("target", l.cfg.Target).Float64("hz", l.cfg.Hz).
		Int("width", l.cfg.Geometry.Width).Int("height", l.cfg.Geometry.Height).
		Msg("mirror running")

	l.clock.start()
	for {
		tickStart := time.Now()
		stale, err := l.tick()
		if err != nil {
			observability.RecordReadError(l.cfg.Target, errorKind(err))
			return fmt.Errorf("mirror: %w", err)
		}
		l.frames.Add(1)
		if stale {
			l.staleFrames.Add(1)
		}
		observability.RecordFrame(l.cfg.Target, stale, time.Since(tickStart))

		if l.sink.QuitRequested() {
			log.Info().Str("target", l.cfg.Target).
				Uint64("frames", l.frames.Load()).Msg("quit requested, mirror stopped")
			return nil
		}
		l.clock.pace()
	}
}

// tick performs one read-decode-render pass. stale reports that the sink
// was handed (partly) the previous frame's pixels because the stream closed
// or the read came back short.
func (l *Loop) tick() (stale bool, err error) {
	if l.cfg.HaltDuringRead {
		if err := l.rd.Interrupt(); err != nil {
			return false, err
		}
	}

	liveAddr, stale, err := l.rd.ReadPointer(l.cfg.PointerAddr)
	if err != nil {
		return false, err
	}
	if !stale {
		raw, err := l.rd.ReadMemory(liveAddr, uint32(l.cfg.Geometry.BufferLen()))
		if err != nil {
			return false, err
		}
		observability.RecordMemoryRead(l.cfg.Target, len(raw))
		if len(raw) == 0 {
			stale = true
		} else if !framebuf.Decode(raw, l.buf, l.cfg.Geometry) {
			stale = true
		}
	}

	if l.cfg.HaltDuringRead {
		if err := l.rd.Continue(); err != nil {
			return false, err
		}
	}

	if err := l.sink.Render(display.Frame{Bits: l.buf, Geo: l.cfg.Geometry, Stale: stale}); err != nil {
		return false, err
	}
	return stale, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, rsp.ErrChecksum):
		return "checksum"
	case errors.Is(err, rsp.ErrFraming):
		return "framing"
	case errors.Is(err, target.ErrBadPayload):
		return "bad_payload"
	case errors.Is(err, target.ErrTargetReply):
		return "target_reply"
	default:
		return "io"
	}
}
