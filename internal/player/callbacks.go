// ABOUTME: Engine callback implementations for the controller
// ABOUTME: Format negotiation, PCM forwarding to the sink and event queuing
package player

import (
	"github.com/Resonate-Protocol/aptest/internal/engine"
	"github.com/Resonate-Protocol/aptest/pkg/audio"
)

func (c *Controller) stale(session engine.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return session < c.session
}

// OnPrepare replaces the sink with one opened for want at 16-bit depth
func (c *Controller) OnPrepare(session engine.Session, want audio.Format) (audio.Format, error) {
	if c.shuttingDown.Load() {
		return audio.Format{}, ErrShuttingDown
	}
	if c.stale(session) {
		return audio.Format{}, ErrStaleSession
	}

	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	// At most one sink is open at a time
	if err := c.closeSinkLocked(); err != nil {
		c.log.Warnf("Closing previous sink: %v", err)
	}

	format := audio.Format{
		SampleRate: want.SampleRate,
		Channels:   want.Channels,
		BitDepth:   audio.OutputBitDepth,
	}

	sink := c.backend.NewOutput()
	if err := sink.Open(format); err != nil {
		return audio.Format{}, err
	}
	c.sink = sink
	c.format = format

	c.log.Infof("Audio sink opened: %s (%s)", format, c.backend.Name())
	return format, nil
}

// OnPlay forwards buf to the open sink
func (c *Controller) OnPlay(session engine.Session, buf []byte) {
	if c.shuttingDown.Load() || c.stale(session) {
		return
	}

	c.sinkMu.RLock()
	defer c.sinkMu.RUnlock()

	if c.sink == nil {
		return
	}
	if err := c.sink.Write(buf); err != nil {
		c.log.Debugf("Sink write failed: %v", err)
	}
}

// OnEvent queues an engine event for the loop goroutine
func (c *Controller) OnEvent(session engine.Session, kind engine.EventKind, arg1, arg2 int) {
	if c.shuttingDown.Load() {
		return
	}

	ev := stateEvent{session: session, kind: kind, prev: engine.State(arg1), cur: engine.State(arg2)}
	select {
	case c.events <- ev:
	case <-c.done:
		return
	}

	if c.wake != nil {
		c.wake()
	}
}
