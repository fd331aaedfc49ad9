// Package framebuf converts page-packed monochrome framebuffer dumps into
// row-major bitmaps.
//
// Source layout (SSD1306-style page addressing): the raw block is height/8
// pages of width bytes each. The byte at column x of page p holds 8
// vertically stacked pixels for that column, bit 0 being the topmost row of
// the page. The destination bitmap is row-major with the most significant
// bit of each byte holding the leftmost pixel. The two bit orders are
// intentionally different.
package framebuf

import (
	"errors"
	"fmt"
)

var ErrGeometry = errors.New("framebuf: invalid geometry")

// Geometry describes the mirrored panel dimensions in pixels.
type Geometry struct {
	Width  int
	Height int
}

func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrGeometry, g.Width, g.Height)
	}
	if g.Height%8 != 0 {
		return fmt.Errorf("%w: height %d not page aligned", ErrGeometry, g.Height)
	}
	if (g.Width*g.Height)%8 != 0 {
		return fmt.Errorf("%w: %dx%d not byte aligned", ErrGeometry, g.Width, g.Height)
	}
	return nil
}

// Pages is the number of 8-row bands in the source layout.
func (g Geometry) Pages() int { return g.Height / 8 }

// BufferLen is the row-major bitmap size in bytes, one bit per pixel.
func (g Geometry) BufferLen() int { return g.Width * g.Height / 8 }

// DisplayBuffer is a row-major 1bpp bitmap, MSB first within each byte. It
// is allocated once and mutated in place every tick.
type DisplayBuffer []byte

func NewDisplayBuffer(g Geometry) DisplayBuffer {
	return make(DisplayBuffer, g.BufferLen())
}

// Bit reports pixel (x, y).
func (d DisplayBuffer) Bit(g Geometry, x, y int) bool {
	return d[(y*g.Width+x)/8]&(1<<uint(7-x%8)) != 0
}

// Decode maps raw page-packed bytes onto dst. Page p, column x, bit b lands
// at pixel (x, p*8+b). Input shorter than Pages()*Width bytes yields a
// partial, non-atomic update: trailing destination bits keep their previous
// value. Extra input bytes are ignored. The return value reports whether
// the input covered the whole bitmap.
func Decode(raw []byte, dst DisplayBuffer, g Geometry) (complete bool) {
	limit := g.Pages() * g.Width
	complete = len(raw) >= limit
	if !complete {
		limit = len(raw)
	}

	for i := 0; i < limit; i++ {
		col := raw[i]
		page := i / g.Width
		x := i % g.Width
		mask := byte(1) << uint(7-x%8)
		for bit := 0; bit < 8; bit++ {
			y := page*8 + bit
			idx := (y*g.Width + x) / 8
			if col>>uint(bit)&1 == 1 {
				dst[idx] |= mask
			} else {
				dst[idx] &^= mask
			}
		}
	}
	return complete
}
