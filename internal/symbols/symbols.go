// Package symbols resolves framebuffer pointer addresses for the mirror.
//
// The resolver is a one-method boundary so the core never depends on a
// specific toolchain: the ELF implementation walks a binary's symbol table,
// and Static supplies a pre-resolved address from configuration or tests.
package symbols

import (
	"debug/elf"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("symbols: symbol not found")

// Resolver maps a symbol name substring to a 32-bit target address.
type Resolver interface {
	Resolve(name string) (uint32, error)
}

// Static is a fixed, pre-resolved address.
type Static uint32

func (s Static) Resolve(string) (uint32, error) { return uint32(s), nil }

// ELF resolves symbols from an ELF binary's symbol table. Matching is by
// substring, so a mangled C++ name still matches its plain identifier.
type ELF struct {
	Path string
}

func (e ELF) Resolve(name string) (uint32, error) {
	f, err := elf.Open(e.Path)
	if err != nil {
		return 0, fmt.Errorf("symbols: open %s: %w", e.Path, err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		return 0, fmt.Errorf("symbols: symbol table of %s: %w", e.Path, err)
	}
	if addr, ok := match(syms, name); ok {
		return addr, nil
	}
	return 0, fmt.Errorf("%w: %q in %s", ErrNotFound, name, e.Path)
}

// match returns the address of the first defined symbol whose name contains
// name.
func match(syms []elf.Symbol, name string) (uint32, bool) {
	for _, sym := range syms {
		if sym.Section == elf.SHN_UNDEF {
			continue
		}
		if strings.Contains(sym.Name, name) {
			return uint32(sym.Value), true
		}
	}
	return 0, false
}
