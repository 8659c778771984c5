// ABOUTME: Harness application wiring
// ABOUTME: Builds the audio backend, engine, controller and command loop and owns shutdown
package app

import (
	"os"
	"syscall"

	"github.com/Resonate-Protocol/aptest/internal/command"
	"github.com/Resonate-Protocol/aptest/internal/config"
	"github.com/Resonate-Protocol/aptest/internal/engine"
	"github.com/Resonate-Protocol/aptest/internal/player"
	"github.com/Resonate-Protocol/aptest/internal/shutdown"
	"github.com/Resonate-Protocol/aptest/internal/terminal"
	"github.com/Resonate-Protocol/aptest/internal/version"
	"github.com/Resonate-Protocol/aptest/pkg/audio/output"
	"github.com/sirupsen/logrus"
)

// Options configures Run
type Options struct {
	// URL is played at start-up
	URL    string
	Config config.Config
	Logger logrus.Ext1FieldLogger

	// Input is read for key presses; nil means os.Stdin
	Input *os.File

	// Exit terminates the process; nil means os.Exit
	Exit func(code int)
}

// Run plays opts.URL, runs the command loop on the calling goroutine and
// tears everything down when the loop ends. It finishes by calling Exit with
// 0 after quit or a signal and 1 after an input failure.
func Run(opts Options) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	input := opts.Input
	if input == nil {
		input = os.Stdin
	}
	fd := int(input.Fd())

	coord := shutdown.New(log, opts.Exit)

	var (
		backend output.Backend
		sys     *engine.System
		raw     *terminal.RawMode
		poller  *terminal.Poller
		ctrl    *player.Controller
	)

	coord.Add("mark shutdown", func() error {
		if ctrl != nil {
			ctrl.BeginShutdown()
		}
		return nil
	})
	coord.Add("restore terminal", func() error {
		if raw == nil {
			return nil
		}
		return raw.Restore()
	})
	coord.Add("destroy engine", func() error {
		if ctrl == nil {
			return nil
		}
		return ctrl.DestroyEngine()
	})
	coord.Add("close sink", func() error {
		if ctrl == nil {
			return nil
		}
		return ctrl.CloseSink()
	})
	coord.Add("audio shutdown", func() error {
		if backend == nil {
			return nil
		}
		return backend.Shutdown()
	})
	coord.Add("engine uninit", func() error {
		if sys == nil {
			return nil
		}
		return sys.Uninit()
	})
	coord.Add("close poller", func() error {
		if poller == nil {
			return nil
		}
		return poller.Close()
	})

	log.Infof("%s %s", version.Product, version.Version)

	var err error
	backend, err = output.NewBackend(opts.Config.Backend)
	if err != nil {
		log.Errorf("Audio backend: %v", err)
		coord.Shutdown(1)
		return
	}

	sys = engine.NewSystem(log)

	raw, err = terminal.Acquire(fd)
	if err != nil {
		log.Errorf("Terminal setup: %v", err)
		coord.Shutdown(1)
		return
	}
	if !raw.Active() {
		log.Debug("Input is not a terminal, reading keys as they arrive")
	}

	poller, err = terminal.NewPoller(fd)
	if err != nil {
		log.Errorf("Input poller: %v", err)
		coord.Shutdown(1)
		return
	}
	coord.OnRequest(poller.Wake)
	coord.NotifySignals(os.Interrupt, syscall.SIGTERM)

	ctrl, err = player.New(player.Config{
		Logger:    log,
		Backend:   backend,
		AutoStart: opts.Config.AutoStart,
		Wake:      poller.Wake,
		NewEngine: func(cb engine.Callbacks) (player.Engine, error) {
			eng, err := sys.NewEngine(cb)
			if err != nil {
				return nil, err
			}
			return eng, nil
		},
	})
	if err != nil {
		log.Errorf("Player setup: %v", err)
		coord.Shutdown(1)
		return
	}

	if opts.URL != "" {
		if err := ctrl.Play(opts.URL); err != nil {
			log.Errorf("Play %s: %v", opts.URL, err)
		}
	}
	log.Info("Ready (q to quit, p for status, any other key for help)")

	loop := command.NewLoop(command.Config{
		Logger:       log,
		Poller:       poller,
		Target:       ctrl,
		Presets:      opts.Config.Presets,
		PollInterval: opts.Config.PollInterval,
		Interrupted:  coord.Requested,
	})

	reason, err := loop.Run()
	code := 0
	if reason == command.ReasonError {
		log.Errorf("Command loop failed: %v", err)
		code = 1
	}
	log.Debugf("Command loop ended: %s", reason)

	coord.Shutdown(code)
}
