// ABOUTME: Tests for the command loop
// ABOUTME: Scripted poller input against a recording controller
package command

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Resonate-Protocol/aptest/internal/player"
	"github.com/Resonate-Protocol/aptest/internal/terminal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollStep struct {
	b   byte
	res terminal.Result
	err error
	// Runs before the step is returned
	before func()
}

type scriptPoller struct {
	steps []pollStep
}

func (p *scriptPoller) Poll(timeout time.Duration) (byte, terminal.Result, error) {
	if len(p.steps) == 0 {
		return 0, 0, io.EOF
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	if step.before != nil {
		step.before()
	}
	return step.b, step.res, step.err
}

func keys(s string) []pollStep {
	steps := make([]pollStep, 0, len(s))
	for i := 0; i < len(s); i++ {
		steps = append(steps, pollStep{b: s[i], res: terminal.ResultByte})
	}
	return steps
}

func timeouts(n int) []pollStep {
	steps := make([]pollStep, n)
	for i := range steps {
		steps[i] = pollStep{res: terminal.ResultTimeout}
	}
	return steps
}

type recordingTarget struct {
	calls    []string
	played   []string
	seeks    []player.SeekRequest
	statuses int
	events   int
	active   bool
	revision uint64
	playErr  error
}

func (r *recordingTarget) Play(url string) error {
	r.calls = append(r.calls, "play")
	r.played = append(r.played, url)
	return r.playErr
}
func (r *recordingTarget) TogglePause() error { r.calls = append(r.calls, "pause"); return nil }
func (r *recordingTarget) Start() error       { r.calls = append(r.calls, "start"); return nil }
func (r *recordingTarget) Stop() error        { r.calls = append(r.calls, "stop"); return nil }
func (r *recordingTarget) Reset() error       { r.calls = append(r.calls, "reset"); return nil }
func (r *recordingTarget) Seek(req player.SeekRequest) error {
	r.calls = append(r.calls, "seek")
	r.seeks = append(r.seeks, req)
	return nil
}
func (r *recordingTarget) PrintStatus()     { r.statuses++ }
func (r *recordingTarget) PrintMetadata()   { r.calls = append(r.calls, "metadata") }
func (r *recordingTarget) ProcessEvents()   { r.events++ }
func (r *recordingTarget) Active() bool     { return r.active }
func (r *recordingTarget) Revision() uint64 { return r.revision }

var testPresets = []string{"http://example.com/one.mp3", "rtsp://example.com/two", "", "./four.mp3"}

func newTestLoop(steps []pollStep, target *recordingTarget, interrupted func() bool) (*Loop, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return NewLoop(Config{
		Logger:      log,
		Poller:      &scriptPoller{steps: steps},
		Target:      target,
		Presets:     testPresets,
		Interrupted: interrupted,
	}), hook
}

func messages(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		out = append(out, e.Message)
	}
	return out
}

func TestLoopPlayPresetThenQuit(t *testing.T) {
	target := &recordingTarget{}
	loop, _ := newTestLoop(keys("1q"), target, nil)

	reason, err := loop.Run()
	require.NoError(t, err)
	assert.Equal(t, ReasonQuit, reason)
	assert.Equal(t, []string{testPresets[0]}, target.played)
	assert.GreaterOrEqual(t, target.events, 2)
}

func TestLoopQuitImmediately(t *testing.T) {
	target := &recordingTarget{}
	loop, hook := newTestLoop(keys("q"), target, nil)

	reason, err := loop.Run()
	require.NoError(t, err)
	assert.Equal(t, ReasonQuit, reason)
	assert.Empty(t, target.calls)
	assert.Contains(t, messages(hook), "Quitting")
}

func TestLoopMissingPreset(t *testing.T) {
	target := &recordingTarget{}
	loop, hook := newTestLoop(keys("39q"), target, nil)

	_, err := loop.Run()
	require.NoError(t, err)
	assert.Empty(t, target.played)
	assert.Contains(t, messages(hook), "No source configured for preset 3")
	assert.Contains(t, messages(hook), "No source configured for preset 9")
}

func TestLoopDispatch(t *testing.T) {
	target := &recordingTarget{}
	loop, hook := newTestLoop(keys(" sdrzom0p\x1b[C\x1b[Bq"), target, nil)

	_, err := loop.Run()
	require.NoError(t, err)

	assert.Equal(t, []string{"pause", "start", "stop", "reset", "seek", "seek", "metadata", "seek", "seek"}, target.calls)
	assert.Equal(t, []player.SeekRequest{
		{Amount: 0},
		{Amount: 60},
		{Amount: 10, Relative: true},
		{Amount: -60, Relative: true},
	}, target.seeks)
	// 'p' plus one after each arrow
	assert.Equal(t, 3, target.statuses)
	assert.Contains(t, messages(hook), "No more tests")
}

func TestLoopHelpOnUnknownKey(t *testing.T) {
	target := &recordingTarget{}
	loop, hook := newTestLoop(keys("xq"), target, nil)

	_, err := loop.Run()
	require.NoError(t, err)

	msgs := messages(hook)
	assert.Contains(t, msgs, `Unknown key 'x' (0x78)`)
	assert.Contains(t, msgs, helpLines[0])
	assert.Contains(t, msgs, helpLines[len(helpLines)-1])
}

func TestLoopIdleHeartbeatCoalesced(t *testing.T) {
	target := &recordingTarget{}

	steps := timeouts(3)
	steps = append(steps, pollStep{res: terminal.ResultTimeout, before: func() { target.revision++ }})
	steps = append(steps, timeouts(2)...)
	steps = append(steps, keys("q")...)

	loop, _ := newTestLoop(steps, target, nil)
	_, err := loop.Run()
	require.NoError(t, err)

	// Once for the first revision and once after it changed
	assert.Equal(t, 2, target.statuses)
}

func TestLoopActiveHeartbeat(t *testing.T) {
	target := &recordingTarget{active: true}

	steps := append(timeouts(3), keys("q")...)
	loop, _ := newTestLoop(steps, target, nil)
	_, err := loop.Run()
	require.NoError(t, err)

	assert.Equal(t, 3, target.statuses)
}

func TestLoopWakeDoesNotHeartbeat(t *testing.T) {
	target := &recordingTarget{}

	steps := []pollStep{{res: terminal.ResultWake}, {res: terminal.ResultWake}}
	steps = append(steps, keys("q")...)
	loop, _ := newTestLoop(steps, target, nil)
	_, err := loop.Run()
	require.NoError(t, err)

	assert.Zero(t, target.statuses)
	assert.GreaterOrEqual(t, target.events, 3)
}

func TestLoopTimeoutAbandonsEscape(t *testing.T) {
	target := &recordingTarget{}

	steps := keys("\x1b[")
	steps = append(steps, timeouts(1)...)
	steps = append(steps, keys("Aq")...)
	loop, hook := newTestLoop(steps, target, nil)
	_, err := loop.Run()
	require.NoError(t, err)

	assert.Empty(t, target.seeks)
	assert.Contains(t, messages(hook), `Unknown key 'A' (0x41)`)
}

func TestLoopInterrupted(t *testing.T) {
	target := &recordingTarget{}
	interrupted := false

	steps := []pollStep{{res: terminal.ResultWake, before: func() { interrupted = true }}}
	loop, _ := newTestLoop(steps, target, func() bool { return interrupted })

	reason, err := loop.Run()
	require.NoError(t, err)
	assert.Equal(t, ReasonSignal, reason)
}

func TestLoopPollError(t *testing.T) {
	target := &recordingTarget{}
	pollErr := errors.New("bad descriptor")

	loop, _ := newTestLoop([]pollStep{{err: pollErr}}, target, nil)
	reason, err := loop.Run()
	assert.Equal(t, ReasonError, reason)
	assert.ErrorIs(t, err, pollErr)
}

func TestLoopCommandErrorKeepsRunning(t *testing.T) {
	target := &recordingTarget{playErr: errors.New("reset: engine destroyed")}
	loop, hook := newTestLoop(keys("1q"), target, nil)

	reason, err := loop.Run()
	require.NoError(t, err)
	assert.Equal(t, ReasonQuit, reason)
	assert.Contains(t, messages(hook), "play failed: reset: engine destroyed")
}
