// ABOUTME: Ordered, idempotent process teardown
// ABOUTME: Runs registered steps once, in order, then exits with the given code
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Step is one named teardown action
type Step struct {
	Name string
	Run  func() error
}

// Coordinator runs teardown steps exactly once
type Coordinator struct {
	log  logrus.FieldLogger
	exit func(code int)

	mu    sync.Mutex
	steps []Step

	requested atomic.Bool
	wake      func()
	once      sync.Once
	stopSigs  func()
}

// New creates a coordinator. exit terminates the process; nil means os.Exit.
func New(log logrus.FieldLogger, exit func(code int)) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if exit == nil {
		exit = os.Exit
	}
	return &Coordinator{log: log, exit: exit}
}

// Add appends a step. Steps run in the order they were added.
func (c *Coordinator) Add(name string, run func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, Step{Name: name, Run: run})
}

// OnRequest sets the function called after Request marks shutdown
func (c *Coordinator) OnRequest(wake func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wake = wake
}

// Request marks shutdown as requested and wakes the loop. It does no teardown itself.
func (c *Coordinator) Request() {
	c.requested.Store(true)

	c.mu.Lock()
	wake := c.wake
	c.mu.Unlock()
	if wake != nil {
		wake()
	}
}

// Requested reports whether Request has been called
func (c *Coordinator) Requested() bool {
	return c.requested.Load()
}

// NotifySignals turns delivery of sigs into Request
func (c *Coordinator) NotifySignals(sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case sig := <-ch:
				c.log.Infof("Received %s, shutting down", sig)
				c.Request()
			case <-done:
				return
			}
		}
	}()

	c.mu.Lock()
	c.stopSigs = func() {
		signal.Stop(ch)
		close(done)
	}
	c.mu.Unlock()
}

// Teardown runs every step once, in order. A failing step is logged and the rest still run.
func (c *Coordinator) Teardown() {
	c.once.Do(func() {
		c.mu.Lock()
		steps := append([]Step(nil), c.steps...)
		stopSigs := c.stopSigs
		c.stopSigs = nil
		c.mu.Unlock()

		for _, step := range steps {
			if err := step.Run(); err != nil {
				c.log.Errorf("Shutdown step %q failed: %v", step.Name, err)
				continue
			}
			c.log.Debugf("Shutdown step %q done", step.Name)
		}

		if stopSigs != nil {
			stopSigs()
		}
	})
}

// Shutdown tears down and terminates the process with code
func (c *Coordinator) Shutdown(code int) {
	c.Teardown()
	c.exit(code)
}
