package display

import (
	"fmt"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/stellar-aria/oledview/internal/framebuf"
)

const pixelDepth = 4 // ABGR8888

// SDL renders frames into a native window through a streaming texture. The
// texture is the panel's native size; the renderer scales it up to the
// window.
type SDL struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	geo      framebuf.Geometry

	// pixels is the RGBA expansion of the current frame, copied to the
	// texture on every Render
	pixels []byte

	quit bool
}

// NewSDL opens a window sized geo scaled by scale.
func NewSDL(title string, geo framebuf.Geometry, scale int) (*SDL, error) {
	if scale < 1 {
		scale = 1
	}
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("display: sdl init: %w", err)
	}

	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(geo.Width*scale), int32(geo.Height*scale),
		sdl.WINDOW_SHOWN)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("display: create window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("display: create renderer: %w", err)
	}

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING, int32(geo.Width), int32(geo.Height))
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("display: create texture: %w", err)
	}

	s := &SDL{
		window:   window,
		renderer: renderer,
		texture:  texture,
		geo:      geo,
		pixels:   make([]byte, geo.Width*geo.Height*pixelDepth),
	}
	// alpha never changes
	for i := pixelDepth - 1; i < len(s.pixels); i += pixelDepth {
		s.pixels[i] = 0xff
	}
	return s, nil
}

// Render expands the 1bpp bitmap into the pixel slice and presents it.
// Stale frames are dimmed so a stalled target is visible at a glance.
func (s *SDL) Render(f Frame) error {
	lit := byte(0xff)
	if f.Stale {
		lit = 0x7f
	}

	i := 0
	for y := 0; y < s.geo.Height; y++ {
		for x := 0; x < s.geo.Width; x++ {
			v := byte(0)
			if f.Bits.Bit(s.geo, x, y) {
				v = lit
			}
			s.pixels[i] = v
			s.pixels[i+1] = v
			s.pixels[i+2] = v
			i += pixelDepth
		}
	}

	if err := s.texture.Update(nil, unsafe.Pointer(&s.pixels[0]), s.geo.Width*pixelDepth); err != nil {
		return fmt.Errorf("display: texture update: %w", err)
	}
	if err := s.renderer.Clear(); err != nil {
		return fmt.Errorf("display: clear: %w", err)
	}
	if err := s.renderer.Copy(s.texture, nil, nil); err != nil {
		return fmt.Errorf("display: copy: %w", err)
	}
	s.renderer.Present()
	return nil
}

// QuitRequested drains pending SDL events and reports whether the window
// was closed or Escape pressed.
func (s *SDL) QuitRequested() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch ev := event.(type) {
		case *sdl.QuitEvent:
			s.quit = true
		case *sdl.KeyboardEvent:
			if ev.Type == sdl.KEYDOWN && ev.Keysym.Sym == sdl.K_ESCAPE {
				s.quit = true
			}
		}
	}
	return s.quit
}

func (s *SDL) Close() error {
	s.texture.Destroy()
	s.renderer.Destroy()
	s.window.Destroy()
	sdl.Quit()
	return nil
}
