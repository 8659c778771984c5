// ABOUTME: Tests for the shutdown coordinator
// ABOUTME: Covers step ordering, idempotency, failure handling and signals
package shutdown

import (
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestCoordinator() (*Coordinator, *[]int, *test.Hook) {
	log, hook := test.NewNullLogger()
	var codes []int
	c := New(log, func(code int) { codes = append(codes, code) })
	return c, &codes, hook
}

func TestShutdownRunsStepsInOrderOnce(t *testing.T) {
	c, codes, _ := newTestCoordinator()

	var order []string
	for _, name := range []string{"mark", "terminal", "engine", "sink", "audio", "system"} {
		c.Add(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	c.Shutdown(0)
	c.Shutdown(1)
	c.Teardown()

	assert.Equal(t, []string{"mark", "terminal", "engine", "sink", "audio", "system"}, order)
	assert.Equal(t, []int{0, 1}, *codes)
}

func TestShutdownContinuesAfterFailure(t *testing.T) {
	c, codes, hook := newTestCoordinator()

	ran := 0
	c.Add("terminal", func() error { ran++; return errors.New("not a tty") })
	c.Add("sink", func() error { ran++; return nil })

	c.Shutdown(1)

	assert.Equal(t, 2, ran)
	assert.Equal(t, []int{1}, *codes)
	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == `Shutdown step "terminal" failed: not a tty` {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRequestWakes(t *testing.T) {
	c, _, _ := newTestCoordinator()

	wakes := 0
	c.OnRequest(func() { wakes++ })

	assert.False(t, c.Requested())
	c.Request()
	c.Request()
	assert.True(t, c.Requested())
	assert.Equal(t, 2, wakes)
}

func TestNotifySignals(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreAnyFunction("os/signal.loop"))

	c, _, _ := newTestCoordinator()
	woke := make(chan struct{}, 1)
	c.OnRequest(func() {
		select {
		case woke <- struct{}{}:
		default:
		}
	})
	c.NotifySignals(syscall.SIGUSR1)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("signal did not request shutdown")
	}
	assert.True(t, c.Requested())

	// Teardown stops the signal goroutine
	c.Teardown()
}
