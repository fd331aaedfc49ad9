package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stellar-aria/oledview/internal/display"
	"github.com/stellar-aria/oledview/internal/framebuf"
	"github.com/stellar-aria/oledview/internal/mirror"
	"github.com/stellar-aria/oledview/internal/observability"
	"github.com/stellar-aria/oledview/internal/symbols"
	"github.com/stellar-aria/oledview/internal/target"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "oledview: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "TOML config file (flags override it)")
	addr := flag.String("addr", "", "GDB server address host:port")
	elfPath := flag.String("elf", "", "firmware ELF for symbol resolution")
	symbol := flag.String("symbol", "", "framebuffer pointer symbol name")
	address := flag.String("address", "", "framebuffer pointer address (hex), skips ELF lookup")
	hz := flag.Float64("hz", 0, "refresh frequency")
	width := flag.Int("width", 0, "panel width in pixels")
	height := flag.Int("height", 0, "panel height in pixels, multiple of 8")
	scale := flag.Int("scale", 0, "window scale factor")
	terminal := flag.Bool("terminal", false, "render to the terminal instead of a window")
	debugAddr := flag.String("debug-addr", "", "listen address for /health /metrics /status (empty disables)")
	haltDuringRead := flag.Bool("halt-during-read", false, "interrupt the target around each framebuffer read")
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := loadConfig(*configPath, cfg)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "elf":
			cfg.ELFPath = *elfPath
		case "symbol":
			cfg.Symbol = *symbol
		case "address":
			v, err := parseAddress(*address)
			if err != nil {
				flagErr = fmt.Errorf("parse -address: %w", err)
				return
			}
			cfg.Address = v
		case "hz":
			cfg.Hz = *hz
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "scale":
			cfg.Scale = *scale
		case "terminal":
			cfg.Terminal = *terminal
		case "debug-addr":
			cfg.DebugAddr = *debugAddr
		case "halt-during-read":
			cfg.HaltDuringRead = *haltDuringRead
		}
	})
	if flagErr != nil {
		return flagErr
	}

	logger := observability.InitLogger("oledview")
	observability.RegisterMetrics()

	geo := framebuf.Geometry{Width: cfg.Width, Height: cfg.Height}
	if err := geo.Validate(); err != nil {
		return err
	}

	pointerAddr, err := resolvePointer(cfg, logger)
	if err != nil {
		return err
	}

	tcfg := target.DefaultConfig()
	if cfg.MaxConnectAttempts > 0 {
		tcfg.MaxConnectAttempts = cfg.MaxConnectAttempts
	}
	if cfg.MaxReadChunk > 0 {
		tcfg.MaxReadChunk = cfg.MaxReadChunk
	}
	if cfg.AckTimeout > 0 {
		tcfg.AckTimeout = cfg.AckTimeout
	}
	tr, err := target.Dial(cfg.Addr, tcfg)
	if err != nil {
		return err
	}
	defer tr.Close()
	log.Info().Str("addr", cfg.Addr).Msg("connected to gdb server")

	sink, err := newSink(cfg, geo)
	if err != nil {
		return err
	}
	defer sink.Close()

	loop, err := mirror.New(mirror.Config{
		Geometry:       geo,
		Hz:             cfg.Hz,
		PointerAddr:    pointerAddr,
		HaltDuringRead: cfg.HaltDuringRead,
		Target:         cfg.Addr,
	}, tr, sink)
	if err != nil {
		return err
	}

	if cfg.DebugAddr != "" {
		srv := observability.DebugServer(logger, loop.Stats)
		go func() {
			if err := srv.Run(cfg.DebugAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.DebugAddr).Msg("debug server stopped")
			}
		}()
	}

	return loop.Run()
}

// resolvePointer prefers an explicit address over ELF lookup.
func resolvePointer(cfg Config, logger zerolog.Logger) (uint32, error) {
	var res symbols.Resolver
	switch {
	case cfg.Address != 0:
		res = symbols.Static(cfg.Address)
	case cfg.ELFPath != "":
		res = symbols.ELF{Path: cfg.ELFPath}
	default:
		return 0, fmt.Errorf("no framebuffer pointer: set -address or -elf")
	}
	addr, err := res.Resolve(cfg.Symbol)
	if err != nil {
		return 0, err
	}
	logger.Info().Str("symbol", cfg.Symbol).Uint32("addr", addr).Msg("resolved framebuffer pointer")
	return addr, nil
}

func newSink(cfg Config, geo framebuf.Geometry) (display.Sink, error) {
	if cfg.Terminal {
		return display.NewTerminal(os.Stdout, geo), nil
	}
	return display.NewSDL("oledview "+cfg.Addr, geo, cfg.Scale)
}
