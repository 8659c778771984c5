// ABOUTME: Blocking keyboard command loop
// ABOUTME: Polls for input with a timeout, decodes keys and dispatches them to the controller
package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/aptest/internal/player"
	"github.com/Resonate-Protocol/aptest/internal/terminal"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is the heartbeat period when no key is pressed
const DefaultPollInterval = time.Second

// Poller reads one input byte with a timeout
type Poller interface {
	Poll(timeout time.Duration) (byte, terminal.Result, error)
}

// Target receives dispatched commands
type Target interface {
	Play(url string) error
	TogglePause() error
	Start() error
	Stop() error
	Reset() error
	Seek(req player.SeekRequest) error
	PrintStatus()
	PrintMetadata()
	ProcessEvents()
	Active() bool
	Revision() uint64
}

// Reason says why Run returned
type Reason int

const (
	ReasonQuit Reason = iota + 1
	ReasonSignal
	ReasonError
)

func (r Reason) String() string {
	switch r {
	case ReasonQuit:
		return "quit"
	case ReasonSignal:
		return "signal"
	case ReasonError:
		return "error"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Config configures a Loop
type Config struct {
	Logger       logrus.FieldLogger
	Poller       Poller
	Target       Target
	Presets      []string
	PollInterval time.Duration

	// Interrupted is checked every iteration; true ends the loop with ReasonSignal
	Interrupted func() bool
}

// Loop is the command loop. It runs on the main goroutine.
type Loop struct {
	log         logrus.FieldLogger
	poller      Poller
	target      Target
	presets     []string
	interval    time.Duration
	interrupted func() bool

	dec Decoder

	// Not-playing heartbeat coalescing
	idlePrinted  bool
	idleRevision uint64
}

// NewLoop creates a command loop
func NewLoop(cfg Config) *Loop {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Interrupted == nil {
		cfg.Interrupted = func() bool { return false }
	}

	return &Loop{
		log:         cfg.Logger,
		poller:      cfg.Poller,
		target:      cfg.Target,
		presets:     cfg.Presets,
		interval:    cfg.PollInterval,
		interrupted: cfg.Interrupted,
	}
}

// Run reads and dispatches commands until quit, interruption or an input failure
func (l *Loop) Run() (Reason, error) {
	for {
		l.target.ProcessEvents()
		if l.interrupted() {
			return ReasonSignal, nil
		}

		b, res, err := l.poller.Poll(l.interval)
		if err != nil {
			return ReasonError, fmt.Errorf("input poll: %w", err)
		}

		switch res {
		case terminal.ResultWake:
			continue
		case terminal.ResultTimeout:
			l.dec.Reset()
			l.heartbeat()
			continue
		}

		cmd, ok := l.dec.Feed(b)
		if !ok {
			continue
		}
		if l.dispatch(cmd) {
			return ReasonQuit, nil
		}
	}
}

// heartbeat prints status on timeout. "Not playing" is printed once per controller revision.
func (l *Loop) heartbeat() {
	if l.target.Active() {
		l.idlePrinted = false
		l.target.PrintStatus()
		return
	}

	rev := l.target.Revision()
	if l.idlePrinted && rev == l.idleRevision {
		return
	}
	l.idlePrinted = true
	l.idleRevision = rev
	l.target.PrintStatus()
}

// dispatch runs cmd and reports whether the loop should quit
func (l *Loop) dispatch(cmd Command) bool {
	var err error

	switch cmd.Kind {
	case KindQuit:
		l.log.Info("Quitting")
		return true
	case KindPlay:
		if cmd.Preset > len(l.presets) || l.presets[cmd.Preset-1] == "" {
			l.log.Warnf("No source configured for preset %d", cmd.Preset)
			return false
		}
		err = l.target.Play(l.presets[cmd.Preset-1])
	case KindNoMorePresets:
		l.log.Info("No more tests")
	case KindTogglePause:
		err = l.target.TogglePause()
	case KindStatus:
		l.target.PrintStatus()
	case KindStart:
		err = l.target.Start()
	case KindStop:
		err = l.target.Stop()
	case KindReset:
		err = l.target.Reset()
	case KindSeek:
		err = l.target.Seek(cmd.Seek)
		if err == nil && cmd.Arrow {
			l.target.PrintStatus()
		}
	case KindMetadata:
		l.target.PrintMetadata()
	case KindHelp:
		l.printHelp(cmd.Byte)
	}

	if err != nil {
		if errors.Is(err, player.ErrShuttingDown) {
			l.log.Debugf("%s ignored during shutdown", cmd.Kind)
		} else {
			l.log.Errorf("%s failed: %v", cmd.Kind, err)
		}
	}
	return false
}
