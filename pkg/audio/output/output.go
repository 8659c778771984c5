// ABOUTME: Audio output interface definition
// ABOUTME: Common interfaces for audio sinks and their backing audio subsystems
package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
)

var (
	// ErrNotOpen is returned by Write on a sink that was never opened or was closed
	ErrNotOpen = errors.New("output not open")
	// ErrUnknownBackend is returned by NewBackend for an unrecognized name
	ErrUnknownBackend = errors.New("unknown audio backend")
)

// Output represents an audio output device
type Output interface {
	// Open configures the device for the given format
	Open(format audio.Format) error

	// Write plays interleaved PCM bytes (blocks until queued)
	Write(data []byte) error

	// Close releases the device; safe to call more than once
	Close() error
}

// Backend is an audio subsystem that hands out sinks
type Backend interface {
	// Name identifies the backend in logs and configuration
	Name() string

	// NewOutput returns an unopened sink bound to this subsystem
	NewOutput() Output

	// Shutdown tears down the subsystem; sinks must be closed first
	Shutdown() error
}

// Backend names accepted by NewBackend
const (
	BackendMalgo = "malgo"
	BackendOto   = "oto"
	BackendNull  = "null"
)

// NewBackend creates the named audio subsystem
func NewBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendMalgo:
		return NewMalgoBackend(), nil
	case BackendOto:
		return NewOtoBackend(), nil
	case BackendNull:
		return NewNullBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

func checkFormat(format audio.Format) error {
	if !format.Valid() {
		return fmt.Errorf("invalid output format: %s", format)
	}
	if format.BitDepth != audio.OutputBitDepth {
		return fmt.Errorf("unsupported bit depth: %d (supported: %d)", format.BitDepth, audio.OutputBitDepth)
	}
	return nil
}
