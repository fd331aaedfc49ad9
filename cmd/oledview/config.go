package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the resolved runtime configuration for one mirror session.
type Config struct {
	Addr           string
	ELFPath        string
	Symbol         string
	Address        uint32 // non-zero skips ELF resolution
	Width          int
	Height         int
	Hz             float64
	Scale          int
	Terminal       bool
	DebugAddr      string
	HaltDuringRead bool

	MaxConnectAttempts int
	MaxReadChunk       int
	AckTimeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:   "127.0.0.1:3333",
		Symbol: "oledCurrentImage",
		Width:  128,
		Height: 48,
		Hz:     24,
		Scale:  4,
	}
}

type fileConfig struct {
	Addr           string  `toml:"addr"`
	ELF            string  `toml:"elf"`
	Symbol         string  `toml:"symbol"`
	Address        string  `toml:"address"`
	Width          int     `toml:"width"`
	Height         int     `toml:"height"`
	Hz             float64 `toml:"hz"`
	Scale          int     `toml:"scale"`
	Terminal       bool    `toml:"terminal"`
	DebugAddr      string  `toml:"debug_addr"`
	HaltDuringRead bool    `toml:"halt_during_read"`

	Target struct {
		MaxConnectAttempts int    `toml:"max_connect_attempts"`
		MaxReadChunk       int    `toml:"max_read_chunk"`
		AckTimeout         string `toml:"ack_timeout"`
	} `toml:"target"`
}

func loadConfig(path string, cfg Config) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("elf") {
		cfg.ELFPath = strings.TrimSpace(raw.ELF)
	}
	if meta.IsDefined("symbol") {
		cfg.Symbol = strings.TrimSpace(raw.Symbol)
	}
	if meta.IsDefined("address") {
		addr, err := parseAddress(raw.Address)
		if err != nil {
			return Config{}, fmt.Errorf("parse address: %w", err)
		}
		cfg.Address = addr
	}
	if meta.IsDefined("width") {
		cfg.Width = raw.Width
	}
	if meta.IsDefined("height") {
		cfg.Height = raw.Height
	}
	if meta.IsDefined("hz") {
		if raw.Hz <= 0 {
			return Config{}, fmt.Errorf("hz must be positive, got %v", raw.Hz)
		}
		cfg.Hz = raw.Hz
	}
	if meta.IsDefined("scale") {
		cfg.Scale = raw.Scale
	}
	if meta.IsDefined("terminal") {
		cfg.Terminal = raw.Terminal
	}
	if meta.IsDefined("debug_addr") {
		cfg.DebugAddr = strings.TrimSpace(raw.DebugAddr)
	}
	if meta.IsDefined("halt_during_read") {
		cfg.HaltDuringRead = raw.HaltDuringRead
	}

	if meta.IsDefined("target", "max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.Target.MaxConnectAttempts
	}
	if meta.IsDefined("target", "max_read_chunk") {
		cfg.MaxReadChunk = raw.Target.MaxReadChunk
	}
	if meta.IsDefined("target", "ack_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Target.AckTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse target.ack_timeout: %w", err)
		}
		cfg.AckTimeout = d
	}

	return cfg, nil
}

// parseAddress accepts a hex address with or without a 0x prefix.
func parseAddress(raw string) (uint32, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
