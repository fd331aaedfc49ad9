// Package target owns the byte stream to the remote debug server.
//
// Ownership boundary:
// - TCP connection lifecycle and read-side buffering
// - request/response exchange (one request outstanding at a time)
// - memory read commands and response decoding
//
// Packet framing itself lives in internal/rsp. The whole package is
// synchronous and blocking: callers serialize every exchange.
package target
