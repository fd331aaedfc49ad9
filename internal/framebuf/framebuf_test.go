package framebuf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stellar-aria/oledview/internal/testutil/testlog"
)

func TestGeometryValidate(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		geo  Geometry
		ok   bool
	}{
		{"deluge oled", Geometry{128, 48}, true},
		{"ssd1306", Geometry{128, 64}, true},
		{"one page", Geometry{8, 8}, true},
		{"zero width", Geometry{0, 48}, false},
		{"negative height", Geometry{128, -8}, false},
		{"unaligned height", Geometry{128, 30}, false},
		{"unaligned area", Geometry{3, 8}, false},
	}
	for _, tc := range cases {
		err := tc.geo.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrGeometry) {
			t.Fatalf("%s: expected ErrGeometry, got %v", tc.name, err)
		}
	}
	if got := (Geometry{128, 48}).BufferLen(); got != 768 {
		t.Fatalf("buffer len: %d", got)
	}
	if got := (Geometry{128, 48}).Pages(); got != 6 {
		t.Fatalf("pages: %d", got)
	}
}

// Source bit 0 maps to the top row of a page while the destination packs
// pixels MSB first. The two orders must not be conflated.
func TestDecodeBitOrderMapping(t *testing.T) {
	testlog.Start(t)
	geo := Geometry{Width: 8, Height: 8}
	dst := NewDisplayBuffer(geo)

	raw := make([]byte, 8)
	raw[0] = 0b00000001 // column 0, topmost pixel of the page
	if !Decode(raw, dst, geo) {
		t.Fatalf("full input reported partial")
	}

	if dst[0] != 0b10000000 {
		t.Fatalf("row 0: got %08b, want 10000000", dst[0])
	}
	for row := 1; row < 8; row++ {
		if dst[row] != 0 {
			t.Fatalf("row %d: got %08b, want empty", row, dst[row])
		}
	}
	if !dst.Bit(geo, 0, 0) {
		t.Fatalf("pixel (0,0) should be set")
	}
	if dst.Bit(geo, 0, 1) || dst.Bit(geo, 1, 0) {
		t.Fatalf("neighbours of (0,0) should be clear")
	}
}

func TestDecodeColumnPlacement(t *testing.T) {
	testlog.Start(t)
	geo := Geometry{Width: 16, Height: 16}
	dst := NewDisplayBuffer(geo)

	raw := make([]byte, geo.Pages()*geo.Width)
	raw[3] = 0b10000000          // page 0, column 3, bottom row of page -> (3, 7)
	raw[geo.Width+9] = 0b0000010 // page 1, column 9, bit 1 -> (9, 9)
	Decode(raw, dst, geo)

	if !dst.Bit(geo, 3, 7) {
		t.Fatalf("pixel (3,7) should be set")
	}
	if !dst.Bit(geo, 9, 9) {
		t.Fatalf("pixel (9,9) should be set")
	}
	var lit int
	for y := 0; y < geo.Height; y++ {
		for x := 0; x < geo.Width; x++ {
			if dst.Bit(geo, x, y) {
				lit++
			}
		}
	}
	if lit != 2 {
		t.Fatalf("lit pixel count: %d", lit)
	}
}

func TestDecodeIdempotentOnFullInput(t *testing.T) {
	testlog.Start(t)
	geo := Geometry{Width: 128, Height: 48}
	raw := make([]byte, geo.Pages()*geo.Width)
	for i := range raw {
		raw[i] = byte(i*31 + 7)
	}

	a := NewDisplayBuffer(geo)
	b := NewDisplayBuffer(geo)
	Decode(raw, a, geo)
	Decode(raw, b, geo)
	if !bytes.Equal(a, b) {
		t.Fatalf("same input decoded differently")
	}
	Decode(raw, a, geo)
	if !bytes.Equal(a, b) {
		t.Fatalf("repeat decode mutated the buffer")
	}
}

func TestDecodePartialInputKeepsTrailingPixels(t *testing.T) {
	testlog.Start(t)
	geo := Geometry{Width: 8, Height: 16}
	dst := NewDisplayBuffer(geo)
	for i := range dst {
		dst[i] = 0xff // previous frame: all pixels lit
	}

	// Only page 0 arrives; page 1 rows must keep their old contents.
	raw := make([]byte, geo.Width)
	if Decode(raw, dst, geo) {
		t.Fatalf("short input reported complete")
	}
	for row := 0; row < 8; row++ {
		if dst[row] != 0 {
			t.Fatalf("row %d should be cleared, got %08b", row, dst[row])
		}
	}
	for row := 8; row < 16; row++ {
		if dst[row] != 0xff {
			t.Fatalf("row %d should keep previous value, got %08b", row, dst[row])
		}
	}

	// Empty and oversized inputs must not touch memory out of bounds.
	if Decode(nil, dst, geo) {
		t.Fatalf("empty input reported complete")
	}
	if !Decode(make([]byte, geo.Pages()*geo.Width+32), dst, geo) {
		t.Fatalf("oversized input reported partial")
	}
}
