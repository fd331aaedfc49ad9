// Package display renders decoded bitmaps and reports quit requests.
package display

import (
	"github.com/stellar-aria/oledview/internal/framebuf"
)

// Frame is one decoded bitmap handed to a sink. Stale marks frames whose
// backing memory read came back empty or truncated: the bits then still
// show (some of) the previous tick's pixels.
type Frame struct {
	Bits  framebuf.DisplayBuffer
	Geo   framebuf.Geometry
	Stale bool
}

// Sink is the rendering boundary. Render draws one frame; QuitRequested is
// polled once per tick and reports whether the user asked to stop.
type Sink interface {
	Render(Frame) error
	QuitRequested() bool
	Close() error
}
