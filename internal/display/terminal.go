package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/stellar-aria/oledview/internal/framebuf"
)

// Terminal renders frames as text, two pixel rows per line using half-block
// characters. It exists for headless use and for exercising the loop in
// tests; it never requests quit, so the process stops on SIGINT.
type Terminal struct {
	w   io.Writer
	geo framebuf.Geometry

	// Home repositions the cursor before each frame so successive frames
	// overdraw in place.
	Home bool
}

func NewTerminal(w io.Writer, geo framebuf.Geometry) *Terminal {
	return &Terminal{w: w, geo: geo, Home: true}
}

func (t *Terminal) Render(f Frame) error {
	var b strings.Builder
	if t.Home {
		b.WriteString("\x1b[H")
	}
	for y := 0; y < t.geo.Height; y += 2 {
		for x := 0; x < t.geo.Width; x++ {
			upper := f.Bits.Bit(t.geo, x, y)
			lower := y+1 < t.geo.Height && f.Bits.Bit(t.geo, x, y+1)
			switch {
			case upper && lower:
				b.WriteRune('█')
			case upper:
				b.WriteRune('▀')
			case lower:
				b.WriteRune('▄')
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	if f.Stale {
		b.WriteString("(stale)\n")
	}
	_, err := fmt.Fprint(t.w, b.String())
	return err
}

func (t *Terminal) QuitRequested() bool { return false }

func (t *Terminal) Close() error { return nil }
