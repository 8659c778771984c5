// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams PCM through a pipe into an oto player on the process-wide oto context
package output

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// ErrFormatLocked is returned when a sink asks oto for a format other than the one its context was created with
var ErrFormatLocked = errors.New("oto context cannot change format")

// OtoBackend owns the single oto context a process may create
type OtoBackend struct {
	mu     sync.Mutex
	otoCtx *oto.Context
	format audio.Format
}

// NewOtoBackend creates a backend; the context is created on first open
func NewOtoBackend() *OtoBackend {
	return &OtoBackend{}
}

// Name returns the backend name
func (b *OtoBackend) Name() string { return BackendOto }

// NewOutput returns an unopened oto sink
func (b *OtoBackend) NewOutput() Output {
	return &Oto{backend: b}
}

func (b *OtoBackend) context(format audio.Format) (*oto.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.otoCtx != nil {
		// oto only allows one context per process
		if b.format.SampleRate != format.SampleRate || b.format.Channels != format.Channels {
			return nil, fmt.Errorf("%w: %s -> %s", ErrFormatLocked, b.format, format)
		}
		if err := b.otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return b.otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	b.otoCtx = ctx
	b.format = format
	return ctx, nil
}

// Shutdown suspends the oto context; oto offers no way to destroy it
func (b *OtoBackend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.otoCtx == nil {
		return nil
	}
	if err := b.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend oto context: %w", err)
	}
	return nil
}

// Oto output implementation using oto library
type Oto struct {
	backend    *OtoBackend
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format

	mu sync.Mutex
}

// Open creates a player fed from a pipe
func (o *Oto) Open(format audio.Format) error {
	if err := checkFormat(format); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return fmt.Errorf("oto output already open (%s)", o.format)
	}

	ctx, err := o.backend.context(format)
	if err != nil {
		return err
	}

	// Persistent player reading from the pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.format = format

	logrus.Debugf("Audio output initialized: %s (oto)", format)

	return nil
}

// Write outputs PCM bytes (blocks until the player has consumed them)
func (o *Oto) Write(data []byte) error {
	o.mu.Lock()
	w := o.pipeWriter
	o.mu.Unlock()

	if w == nil {
		return ErrNotOpen
	}

	if _, err := w.Write(data); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return ErrNotOpen
		}
		return fmt.Errorf("pipe write failed: %w", err)
	}

	return nil
}

// Close releases the player and its pipe
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	return nil
}
