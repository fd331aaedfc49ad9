// Package rsp owns the GDB remote serial protocol wire contract.
//
// Ownership boundary:
// - packet framing and checksum primitives
// - run-length and escape payload primitives
//
// The codec is pure: no I/O and no connection state. The transport in
// internal/target owns the byte stream.
package rsp
