package mirror

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stellar-aria/oledview/internal/display"
	"github.com/stellar-aria/oledview/internal/framebuf"
	"github.com/stellar-aria/oledview/internal/rsp"
	"github.com/stellar-aria/oledview/internal/target"
	"github.com/stellar-aria/oledview/internal/testutil/gdbstub"
	"github.com/stellar-aria/oledview/internal/testutil/testlog"
)

// captureSink records copies of rendered frames and requests quit after a
// fixed number of them.
type captureSink struct {
	frames    []display.Frame
	quitAfter int
}

func (s *captureSink) Render(f display.Frame) error {
	cp := display.Frame{
		Bits:  append(framebuf.DisplayBuffer(nil), f.Bits...),
		Geo:   f.Geo,
		Stale: f.Stale,
	}
	s.frames = append(s.frames, cp)
	return nil
}

func (s *captureSink) QuitRequested() bool { return len(s.frames) >= s.quitAfter }
func (s *captureSink) Close() error        { return nil }

func testTransport(t *testing.T, stub *gdbstub.Stub) *target.Transport {
	t.Helper()
	cfg := target.DefaultConfig()
	cfg.MaxConnectAttempts = 1
	tr, err := target.Dial(stub.Addr(), cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestFrameClockConvergesWithoutDrift(t *testing.T) {
	testlog.Start(t)
	const iterations = 100
	interval := (Config{Hz: 24}).WithDefaults().Interval()

	cur := time.Unix(0, 0)
	clock := frameClock{
		interval: interval,
		now:      func() time.Time { return cur },
		sleep:    func(d time.Duration) { cur = cur.Add(d) },
	}

	var starts []time.Time
	clock.start()
	for i := 0; i < iterations; i++ {
		starts = append(starts, cur)
		cur = cur.Add(time.Millisecond) // loop body well under the interval
		clock.pace()
	}

	for i := 1; i < len(starts); i++ {
		if got := starts[i].Sub(starts[i-1]); got != interval {
			t.Fatalf("iteration %d: interval %v, want %v", i, got, interval)
		}
	}
	if total := starts[len(starts)-1].Sub(starts[0]); total != time.Duration(iterations-1)*interval {
		t.Fatalf("accumulated drift: total %v over %d iterations", total, iterations)
	}
}

func TestFrameClockSlowTickDoesNotCatchUp(t *testing.T) {
	testlog.Start(t)
	interval := 40 * time.Millisecond
	cur := time.Unix(0, 0)
	var slept time.Duration
	clock := frameClock{
		interval: interval,
		now:      func() time.Time { return cur },
		sleep: func(d time.Duration) {
			slept += d
			cur = cur.Add(d)
		},
	}

	clock.start()
	cur = cur.Add(100 * time.Millisecond) // overran the interval
	clock.pace()
	if slept != 0 {
		t.Fatalf("overrun tick should not sleep, slept %v", slept)
	}

	// The boundary moved to now, so the next on-time tick sleeps the full
	// remainder instead of paying off the overrun.
	boundary := cur
	cur = cur.Add(time.Millisecond)
	clock.pace()
	if slept != interval-time.Millisecond {
		t.Fatalf("post-overrun sleep %v, want %v", slept, interval-time.Millisecond)
	}
	if got := cur.Sub(boundary); got != interval {
		t.Fatalf("boundary advanced by %v, want %v", got, interval)
	}
}

func TestLoopMirrorsFramebuffer(t *testing.T) {
	testlog.Start(t)
	geo := framebuf.Geometry{Width: 16, Height: 16}

	stub := gdbstub.Listen(t)
	const ptrAddr, fbAddr = 0x1000, 0x2000_4f80
	var ptr [4]byte
	binary.LittleEndian.PutUint32(ptr[:], fbAddr)
	stub.SetMemory(ptrAddr, ptr[:])

	raw := make([]byte, geo.Pages()*geo.Width)
	raw[0] = 0x01 // pixel (0,0)
	stub.SetMemory(fbAddr, raw)

	sink := &captureSink{quitAfter: 3}
	loop, err := New(Config{Geometry: geo, Hz: 500, PointerAddr: ptrAddr, Target: stub.Addr()}, testTransport(t, stub), sink)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.frames) != 3 {
		t.Fatalf("frames rendered: %d", len(sink.frames))
	}
	for i, f := range sink.frames {
		if f.Stale {
			t.Fatalf("frame %d unexpectedly stale", i)
		}
		if !f.Bits.Bit(geo, 0, 0) {
			t.Fatalf("frame %d: pixel (0,0) not set", i)
		}
		if f.Bits.Bit(geo, 0, 1) {
			t.Fatalf("frame %d: pixel (0,1) should be clear", i)
		}
	}
	if stats := loop.Stats(); stats["frames"].(uint64) != 3 {
		t.Fatalf("stats: %v", stats)
	}
}

// A server that closes without ever answering must produce stale frames,
// not a crash: the previous (blank) buffer is rendered until quit.
func TestLoopSurvivesClosedStream(t *testing.T) {
	testlog.Start(t)
	geo := framebuf.Geometry{Width: 16, Height: 16}

	stub := gdbstub.Listen(t)
	stub.CloseOnCommand = true

	sink := &captureSink{quitAfter: 2}
	loop, err := New(Config{Geometry: geo, Hz: 500, PointerAddr: 0x1000, Target: stub.Addr()}, testTransport(t, stub), sink)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.frames) != 2 {
		t.Fatalf("frames rendered: %d", len(sink.frames))
	}
	for i, f := range sink.frames {
		if !f.Stale {
			t.Fatalf("frame %d should be stale", i)
		}
		for _, b := range f.Bits {
			if b != 0 {
				t.Fatalf("frame %d: blank buffer expected", i)
			}
		}
	}
	if stats := loop.Stats(); stats["stale_frames"].(uint64) != 2 {
		t.Fatalf("stats: %v", stats)
	}
}

// Halt-during-read must not break the closed-stream leniency: once the
// peer is gone, the interrupt and resume hooks are no-ops and the loop
// keeps serving stale frames.
func TestLoopSurvivesClosedStreamWhileHalting(t *testing.T) {
	testlog.Start(t)
	geo := framebuf.Geometry{Width: 16, Height: 16}

	stub := gdbstub.Listen(t)
	stub.CloseOnCommand = true

	sink := &captureSink{quitAfter: 2}
	cfg := Config{Geometry: geo, Hz: 500, PointerAddr: 0x1000, HaltDuringRead: true, Target: stub.Addr()}
	loop, err := New(cfg, testTransport(t, stub), sink)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	if err := loop.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.frames) != 2 {
		t.Fatalf("frames rendered: %d", len(sink.frames))
	}
	for i, f := range sink.frames {
		if !f.Stale {
			t.Fatalf("frame %d should be stale", i)
		}
	}
}

func TestLoopStopsOnProtocolCorruption(t *testing.T) {
	testlog.Start(t)
	geo := framebuf.Geometry{Width: 8, Height: 8}

	stub := gdbstub.Listen(t)
	stub.SetMemory(0x1000, []byte{0x80, 0x4f, 0x00, 0x20})
	stub.CorruptChecksums = true

	sink := &captureSink{quitAfter: 100}
	loop, err := New(Config{Geometry: geo, Hz: 500, PointerAddr: 0x1000, Target: stub.Addr()}, testTransport(t, stub), sink)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	err = loop.Run()
	if !errors.Is(err, rsp.ErrChecksum) {
		t.Fatalf("expected checksum failure to stop the loop, got %v", err)
	}
	if len(sink.frames) != 0 {
		t.Fatalf("no frame should render after corruption, got %d", len(sink.frames))
	}
}
