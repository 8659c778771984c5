// ABOUTME: Terminal input primitives for the command loop
// ABOUTME: Scoped cbreak-mode acquisition and a byte poller with an out-of-band wake-up
// Package terminal puts the controlling terminal into unbuffered, no-echo
// input and reads single bytes with a timeout that other goroutines can cut short.
package terminal
