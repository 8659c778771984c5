// ABOUTME: Playback engine driving one datasource through its lifecycle
// ABOUTME: Async prepare, decode goroutine, start/pause/stop/seek and ordered state events
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Resonate-Protocol/aptest/pkg/audio"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Callbacks receives engine output. Methods are called from engine goroutines.
type Callbacks interface {
	// OnPrepare negotiates the sink format once the stream header is known.
	// The returned format must keep the requested channels and sample rate.
	OnPrepare(session Session, want audio.Format) (audio.Format, error)

	// OnPlay delivers decoded PCM; buf is only valid during the call
	OnPlay(session Session, buf []byte)

	// OnEvent delivers engine events in emission order
	OnEvent(session Session, kind EventKind, arg1, arg2 int)
}

// Options configures an Engine
type Options struct {
	Logger logrus.FieldLogger
	Open   Opener

	// ChunkDuration is the amount of audio decoded per OnPlay call
	ChunkDuration time.Duration
}

// Status is a snapshot of the engine
type Status struct {
	Session  Session
	ID       uuid.UUID
	State    State
	URL      string
	Format   audio.Format
	Position time.Duration
	Duration time.Duration // Zero when unknown
	Seekable bool
	Active   bool // A source is loaded
	Err      error
}

// Engine plays a single datasource at a time
type Engine struct {
	log   logrus.FieldLogger
	cb    Callbacks
	open  Opener
	chunk time.Duration

	// ops serializes commands
	ops sync.Mutex

	mu        sync.Mutex
	cond      *sync.Cond
	state     State
	session   Session
	id        uuid.UUID
	url       string
	src       Source
	format    audio.Format
	position  int64 // Frames
	seekTo    int64 // Pending seek target in frames, -1 when none
	lastErr   error
	cancel    context.CancelFunc
	done      chan struct{}
	destroyed bool

	events *eventQueue
}

// New creates an idle engine
func New(cb Callbacks, opts Options) (*Engine, error) {
	if cb == nil {
		return nil, errors.New("engine callbacks are required")
	}
	if opts.Open == nil {
		return nil, errors.New("engine opener is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.ChunkDuration <= 0 {
		opts.ChunkDuration = 50 * time.Millisecond
	}

	e := &Engine{
		log:    opts.Logger,
		cb:     cb,
		open:   opts.Open,
		chunk:  opts.ChunkDuration,
		state:  StateIdle,
		seekTo: -1,
	}
	e.cond = sync.NewCond(&e.mu)
	e.events = newEventQueue(func(ev event) {
		e.cb.OnEvent(ev.session, ev.kind, ev.arg1, ev.arg2)
	})
	return e, nil
}

// Session returns the current session generation
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// State returns the current playback state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Reset stops any playback, releases the source and returns to Idle.
// It waits for the previous session's goroutine to exit.
func (e *Engine) Reset() error {
	e.ops.Lock()
	defer e.ops.Unlock()

	if e.isDestroyed() {
		return ErrDestroyed
	}
	e.reset()
	return nil
}

func (e *Engine) reset() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.session++
	e.cond.Broadcast()
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	e.mu.Lock()
	src := e.src
	e.src = nil
	e.url = ""
	e.format = audio.Format{}
	e.position = 0
	e.seekTo = -1
	e.lastErr = nil
	e.setStateLocked(StateIdle)
	e.mu.Unlock()

	if src != nil {
		if err := src.Close(); err != nil {
			e.log.Debugf("source close error: %v", err)
		}
	}
}

// SetDatasource binds url to the idle engine
func (e *Engine) SetDatasource(url string) error {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return ErrDestroyed
	}
	if e.state != StateIdle {
		return fmt.Errorf("%w: set datasource in %s", ErrInvalidState, e.state)
	}
	if url == "" {
		return ErrNoDatasource
	}
	e.url = url
	e.id = uuid.New()
	return nil
}

// PrepareAsync opens and parses the datasource in the background.
// The engine moves to Preparing now and to Prepared or Error later.
func (e *Engine) PrepareAsync() error {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return ErrDestroyed
	}
	if e.state != StateIdle {
		return fmt.Errorf("%w: prepare in %s", ErrInvalidState, e.state)
	}
	if e.url == "" {
		return ErrNoDatasource
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.setStateLocked(StatePreparing)

	log := e.log.WithFields(logrus.Fields{"session": e.id.String(), "url": e.url})
	go e.run(ctx, e.session, e.url, log, done)
	return nil
}

// Start begins or resumes playback
func (e *Engine) Start() error {
	return e.transition("start", StateStarted, StatePrepared, StatePaused, StateStopped)
}

// Pause toggles between Started and Paused
func (e *Engine) Pause() error {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return ErrDestroyed
	}
	switch e.state {
	case StateStarted:
		e.setStateLocked(StatePaused)
	case StatePaused:
		e.setStateLocked(StateStarted)
	default:
		return fmt.Errorf("%w: pause in %s", ErrInvalidState, e.state)
	}
	return nil
}

// Stop halts playback. A seekable source is rewound to the beginning.
func (e *Engine) Stop() error {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return ErrDestroyed
	}
	switch e.state {
	case StateStarted, StatePaused, StatePrepared:
	default:
		return fmt.Errorf("%w: stop in %s", ErrInvalidState, e.state)
	}
	if e.src != nil && e.src.Seekable() {
		e.seekTo = 0
	}
	e.setStateLocked(StateStopped)
	return nil
}

func (e *Engine) transition(op string, to State, from ...State) error {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return ErrDestroyed
	}
	for _, s := range from {
		if e.state == s {
			e.setStateLocked(to)
			return nil
		}
	}
	return fmt.Errorf("%w: %s in %s", ErrInvalidState, op, e.state)
}

// Seek moves playback by amount seconds, from the current position when
// relative or from the start otherwise. The target is clamped to the stream.
func (e *Engine) Seek(amount float64, relative bool) error {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return ErrDestroyed
	}
	if !e.state.Playable() || e.src == nil {
		return fmt.Errorf("%w: seek in %s", ErrInvalidState, e.state)
	}
	if !e.src.Seekable() {
		return ErrNotSeekable
	}

	base := e.position
	if e.seekTo >= 0 {
		base = e.seekTo
	}

	delta := e.format.FramesFor(time.Duration(amount * float64(time.Second)))
	target := delta
	if relative {
		target = base + delta
	}
	if target < 0 {
		target = 0
	}
	if length := e.src.Length(); length >= 0 && target > length {
		target = length
	}

	e.seekTo = target
	e.cond.Broadcast()
	return nil
}

// Status returns a snapshot of the engine
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.position
	if e.seekTo >= 0 {
		pos = e.seekTo
	}

	st := Status{
		Session: e.session,
		ID:      e.id,
		State:   e.state,
		URL:     e.url,
		Format:  e.format,
		Active:  e.src != nil,
		Err:     e.lastErr,
	}
	if e.format.Valid() {
		st.Position = e.format.DurationOfFrames(pos)
	}
	if e.src != nil {
		st.Seekable = e.src.Seekable()
		if length := e.src.Length(); length >= 0 && e.format.Valid() {
			st.Duration = e.format.DurationOfFrames(length)
		}
	}
	return st
}

// Metadata returns the loaded stream's metadata
func (e *Engine) Metadata() (Metadata, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.src == nil {
		return Metadata{}, false
	}
	return e.src.Metadata(), true
}

// Destroy resets the engine and stops event delivery. Safe to call more than once.
func (e *Engine) Destroy() error {
	e.ops.Lock()
	defer e.ops.Unlock()

	if e.isDestroyed() {
		return nil
	}
	e.reset()

	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()

	e.events.close()
	return nil
}

func (e *Engine) isDestroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// setStateLocked must be called with e.mu held
func (e *Engine) setStateLocked(s State) {
	if s == e.state {
		return
	}
	prev := e.state
	e.state = s
	e.cond.Broadcast()
	e.events.push(event{session: e.session, kind: EventStateChange, arg1: int(prev), arg2: int(s)})
}

func (e *Engine) failLocked(log logrus.FieldLogger, err error) {
	e.lastErr = err
	log.Errorf("Playback error: %v", err)
	e.setStateLocked(StateError)
}

// run prepares the source and then decodes until the session ends
func (e *Engine) run(ctx context.Context, gen Session, url string, log logrus.FieldLogger, done chan struct{}) {
	defer close(done)

	src, err := e.open(ctx, url)

	e.mu.Lock()
	if e.session != gen {
		e.mu.Unlock()
		if src != nil {
			src.Close()
		}
		return
	}
	if err != nil {
		e.failLocked(log, err)
		e.mu.Unlock()
		return
	}
	// From here Reset owns closing src
	e.src = src
	e.mu.Unlock()

	want := src.Format()
	got, err := e.cb.OnPrepare(gen, want)

	e.mu.Lock()
	if e.session != gen {
		e.mu.Unlock()
		return
	}
	if err != nil {
		e.failLocked(log, fmt.Errorf("prepare sink: %w", err))
		e.mu.Unlock()
		return
	}
	if got.Channels != want.Channels || got.SampleRate != want.SampleRate {
		e.failLocked(log, fmt.Errorf("%w: want %s, got %s", ErrFormatRejected, want, got))
		e.mu.Unlock()
		return
	}
	e.format = want
	e.setStateLocked(StatePrepared)
	e.mu.Unlock()

	log.Infof("Prepared %s", want)
	e.decode(ctx, gen, src, log)
}

func (e *Engine) decode(ctx context.Context, gen Session, src Source, log logrus.FieldLogger) {
	frameSize := e.format.FrameSize()
	buf := make([]byte, e.format.BytesFor(e.chunk))

	for {
		e.mu.Lock()
		for e.session == gen && e.state != StateStarted && ctx.Err() == nil {
			e.cond.Wait()
		}
		if e.session != gen || ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		if e.seekTo >= 0 {
			target := e.seekTo
			e.seekTo = -1
			if err := src.Seek(target); err != nil {
				log.Warnf("Seek to frame %d failed: %v", target, err)
			} else {
				e.position = target
			}
		}
		e.mu.Unlock()

		n, err := src.Read(buf)
		if n > 0 {
			e.cb.OnPlay(gen, buf[:n])
		}

		e.mu.Lock()
		if e.session != gen {
			e.mu.Unlock()
			return
		}
		e.position += int64(n / frameSize)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
			e.setStateLocked(StateCompleted)
			e.mu.Unlock()
			log.Debug("End of stream")
			return
		default:
			e.failLocked(log, &SourceError{Op: "read", URL: e.url, Err: err})
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}
}
