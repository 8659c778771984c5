// ABOUTME: Command-level playback controller
// ABOUTME: Owns the engine and sink handles and applies engine state events on the loop goroutine
package player

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/aptest/internal/engine"
	"github.com/Resonate-Protocol/aptest/pkg/audio"
	"github.com/Resonate-Protocol/aptest/pkg/audio/output"
	"github.com/sirupsen/logrus"
)

// eventBuffer bounds the callback-to-loop event channel
const eventBuffer = 64

var (
	// ErrShuttingDown is returned once shutdown has begun
	ErrShuttingDown = errors.New("player is shutting down")
	// ErrStaleSession is returned for callbacks from a replaced session
	ErrStaleSession = errors.New("stale session")
)

// Engine is the playback engine as seen by the controller
type Engine interface {
	Reset() error
	SetDatasource(url string) error
	PrepareAsync() error
	Start() error
	Pause() error
	Stop() error
	Seek(amount float64, relative bool) error
	Session() engine.Session
	Status() engine.Status
	Metadata() (engine.Metadata, bool)
	Destroy() error
}

// SeekRequest moves playback by Amount seconds, from the current position when Relative
type SeekRequest struct {
	Amount   float64
	Relative bool
}

// Config configures a Controller
type Config struct {
	Logger  logrus.Ext1FieldLogger
	Backend output.Backend

	// NewEngine creates the engine that reports to the controller's callbacks
	NewEngine func(cb engine.Callbacks) (Engine, error)

	// AutoStart starts playback as soon as a source is prepared
	AutoStart bool

	// Wake interrupts the command loop's poll after an event is queued
	Wake func()
}

type stateEvent struct {
	session engine.Session
	kind    engine.EventKind
	prev    engine.State
	cur     engine.State
}

// Controller serializes playback commands against the engine state machine
type Controller struct {
	log       logrus.Ext1FieldLogger
	backend   output.Backend
	autoStart bool
	wake      func()
	eng       Engine

	mu       sync.Mutex
	state    engine.State
	session  engine.Session
	revision uint64

	sinkMu sync.RWMutex
	sink   output.Output
	format audio.Format

	shuttingDown atomic.Bool
	events       chan stateEvent
	done         chan struct{}
}

// New creates a controller and its engine
func New(cfg Config) (*Controller, error) {
	if cfg.Backend == nil {
		return nil, errors.New("audio backend is required")
	}
	if cfg.NewEngine == nil {
		return nil, errors.New("engine constructor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	c := &Controller{
		log:       cfg.Logger,
		backend:   cfg.Backend,
		autoStart: cfg.AutoStart,
		wake:      cfg.Wake,
		state:     engine.StateIdle,
		events:    make(chan stateEvent, eventBuffer),
		done:      make(chan struct{}),
	}

	eng, err := cfg.NewEngine(c)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	c.eng = eng
	c.session = eng.Session()
	return c, nil
}

// State returns the last state applied on the loop goroutine
func (c *Controller) State() engine.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Revision increases every time the controller's view of the session changes
func (c *Controller) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

// Active reports whether a stream is loaded
func (c *Controller) Active() bool {
	return c.State().Playable()
}

// Play resets the engine and prepares url as a new session
func (c *Controller) Play(url string) error {
	if c.shuttingDown.Load() {
		return ErrShuttingDown
	}
	if err := c.resetSession(); err != nil {
		return err
	}
	if err := c.eng.SetDatasource(url); err != nil {
		return fmt.Errorf("set datasource: %w", err)
	}
	if err := c.eng.PrepareAsync(); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	c.log.Infof("Playing %s", url)
	return nil
}

// Reset discards the current session
func (c *Controller) Reset() error {
	if c.shuttingDown.Load() {
		return ErrShuttingDown
	}
	return c.resetSession()
}

func (c *Controller) resetSession() error {
	if err := c.eng.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	c.mu.Lock()
	c.session = c.eng.Session()
	c.state = engine.StateIdle
	c.revision++
	c.mu.Unlock()
	return nil
}

// TogglePause pauses a started session or resumes a paused one
func (c *Controller) TogglePause() error {
	return c.command("pause", c.eng.Pause, engine.StateStarted, engine.StatePaused)
}

// Start begins or resumes playback
func (c *Controller) Start() error {
	return c.command("start", c.eng.Start, engine.StatePrepared, engine.StatePaused, engine.StateStopped)
}

// Stop halts playback
func (c *Controller) Stop() error {
	return c.command("stop", c.eng.Stop, engine.StateStarted, engine.StatePaused, engine.StatePrepared)
}

// Seek moves playback within the loaded stream
func (c *Controller) Seek(req SeekRequest) error {
	err := c.command("seek", func() error {
		return c.eng.Seek(req.Amount, req.Relative)
	}, engine.StatePrepared, engine.StateStarted, engine.StatePaused, engine.StateStopped)

	if errors.Is(err, engine.ErrNotSeekable) {
		c.log.Info("Source is not seekable")
		return nil
	}
	return err
}

// command runs fn when the current state is one of valid; anything else is ignored.
// Queued events are applied first so keys typed back to back see each other's effect.
func (c *Controller) command(name string, fn func() error, valid ...engine.State) error {
	if c.shuttingDown.Load() {
		return ErrShuttingDown
	}

	c.ProcessEvents()
	state := c.State()
	allowed := false
	for _, s := range valid {
		if s == state {
			allowed = true
			break
		}
	}
	if !allowed {
		c.log.Tracef("Ignoring %s in state %s", name, state)
		return nil
	}

	if err := fn(); err != nil {
		if errors.Is(err, engine.ErrInvalidState) {
			c.log.Tracef("Engine ignored %s: %v", name, err)
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// ProcessEvents applies every queued engine event. Must run on the loop goroutine.
func (c *Controller) ProcessEvents() {
	for {
		select {
		case ev := <-c.events:
			c.apply(ev)
		default:
			return
		}
	}
}

func (c *Controller) apply(ev stateEvent) {
	if c.shuttingDown.Load() || ev.kind != engine.EventStateChange {
		return
	}

	c.mu.Lock()
	if ev.session < c.session {
		c.mu.Unlock()
		c.log.Tracef("Dropping event %s -> %s from stale session %d", ev.prev, ev.cur, ev.session)
		return
	}
	c.session = ev.session
	c.state = ev.cur
	c.revision++
	c.mu.Unlock()

	c.log.Debugf("State changed: %s -> %s", ev.prev, ev.cur)

	switch ev.cur {
	case engine.StatePrepared:
		if c.autoStart {
			if err := c.Start(); err != nil {
				c.log.Errorf("Auto-start failed: %v", err)
			}
		}
	case engine.StateStarted:
		c.log.Info("Started (hit 'd' to stop or space to pause)")
	case engine.StatePaused:
		c.log.Info("Paused (hit space to resume)")
	case engine.StateStopped:
		c.log.Info("Stopped (hit 's' to start again)")
	case engine.StateCompleted:
		c.log.Info("Playback completed (hit 1-9 to play another source)")
	case engine.StateError:
		st := c.eng.Status()
		c.log.Errorf("Playback failed: %v", st.Err)
	}
}

// PrintStatus logs a snapshot of the engine
func (c *Controller) PrintStatus() {
	st := c.eng.Status()
	if !st.Active {
		c.log.Infof("Status: not playing (%s)", st.State)
		return
	}

	duration := "live"
	if st.Duration > 0 {
		duration = st.Duration.Truncate(time.Second).String()
	}
	c.log.WithFields(logrus.Fields{
		"session": st.ID.String(),
		"url":     st.URL,
	}).Infof("Status: %s %s / %s (%s)", st.State, st.Position.Truncate(time.Second), duration, st.Format)
}

// PrintMetadata logs the loaded stream's metadata
func (c *Controller) PrintMetadata() {
	meta, ok := c.eng.Metadata()
	if !ok {
		c.log.Info("Metadata: nothing loaded")
		return
	}
	c.log.Infof("Metadata: %s", meta)
}

// BeginShutdown stops accepting callbacks and commands
func (c *Controller) BeginShutdown() {
	if c.shuttingDown.CompareAndSwap(false, true) {
		close(c.done)
	}
}

// ShuttingDown reports whether BeginShutdown has been called
func (c *Controller) ShuttingDown() bool {
	return c.shuttingDown.Load()
}

// DestroyEngine destroys the engine; the decode goroutine has exited on return
func (c *Controller) DestroyEngine() error {
	return c.eng.Destroy()
}

// CloseSink closes the open sink, if any
func (c *Controller) CloseSink() error {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	return c.closeSinkLocked()
}

func (c *Controller) closeSinkLocked() error {
	if c.sink == nil {
		return nil
	}
	err := c.sink.Close()
	c.sink = nil
	c.format = audio.Format{}
	if err != nil {
		return fmt.Errorf("close sink: %w", err)
	}
	return nil
}
