// ABOUTME: Null audio output implementation
// ABOUTME: Discards PCM while pacing writes in real time, for hosts without audio
package output

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
)

// NullBackend hands out sinks that play nothing
type NullBackend struct {
	// Realtime paces Write to the format's playback rate
	Realtime bool
}

// NewNullBackend creates a realtime-paced null backend
func NewNullBackend() *NullBackend {
	return &NullBackend{Realtime: true}
}

// Name returns the backend name
func (b *NullBackend) Name() string { return BackendNull }

// NewOutput returns an unopened null sink
func (b *NullBackend) NewOutput() Output {
	return &Null{realtime: b.Realtime}
}

// Shutdown is a no-op
func (b *NullBackend) Shutdown() error { return nil }

// Null output discards samples
type Null struct {
	realtime bool

	mu      sync.Mutex
	open    bool
	format  audio.Format
	started time.Time
	written int64
}

// Open records the format and starts the playback clock
func (n *Null) Open(format audio.Format) error {
	if err := checkFormat(format); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.open = true
	n.format = format
	n.started = time.Now()
	n.written = 0
	return nil
}

// Write drops the data, sleeping until it would have finished playing
func (n *Null) Write(data []byte) error {
	n.mu.Lock()
	if !n.open {
		n.mu.Unlock()
		return ErrNotOpen
	}
	// Rebase after a pause or stall so only audio written from now on is paced
	now := time.Now()
	if played := n.started.Add(n.elapsed()); played.Before(now) {
		n.started = now.Add(-n.elapsed())
	}
	n.written += int64(len(data))
	due := n.started.Add(n.elapsed())
	realtime := n.realtime
	n.mu.Unlock()

	if realtime {
		if wait := time.Until(due); wait > 0 {
			time.Sleep(wait)
		}
	}
	return nil
}

func (n *Null) elapsed() time.Duration {
	return n.format.DurationOfFrames(n.written / int64(n.format.FrameSize()))
}

// Written returns the number of bytes accepted since Open
func (n *Null) Written() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.written
}

// Close marks the sink closed
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = false
	return nil
}
