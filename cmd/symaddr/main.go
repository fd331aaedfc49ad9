package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stellar-aria/oledview/internal/symbols"
)

// symaddr prints the address of a symbol from an ELF, the same lookup
// oledview performs at startup. Handy for pinning -address in scripts.
func main() {
	elfPath := flag.String("elf", "", "firmware ELF file")
	flag.Parse()

	if *elfPath == "" {
		fmt.Fprintln(os.Stderr, "usage: symaddr -elf <path> [symbol-substring]")
		os.Exit(1)
	}
	symbol := "oledCurrentImage"
	if flag.NArg() > 0 {
		symbol = flag.Arg(0)
	}
	addr, err := symbols.ELF{Path: *elfPath}.Resolve(symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "symaddr: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("0x%08x\n", addr)
}
