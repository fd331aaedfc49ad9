// Package mirror drives the live display mirror: a single-threaded,
// fixed-frequency loop that reads the target framebuffer, decodes it and
// hands it to the display sink.
//
// Ownership boundary:
// - the DisplayBuffer and the frame clock
// - tick ordering: read pointer, read memory, decode, render, poll quit,
//   pace
//
// Everything is synchronous and blocking. The only ways out of the loop
// are the sink's quit signal and an unrecoverable protocol error.
package mirror
