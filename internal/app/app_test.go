// ABOUTME: End-to-end tests for the harness wiring
// ABOUTME: Runs the full stack on a pipe with the null audio backend
package app

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Resonate-Protocol/aptest/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, seconds int) string {
	t.Helper()
	const rate, channels = 8000, 2
	dataLen := seconds * rate * channels * 2

	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataLen))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(channels*2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataLen))
	b.Write(make([]byte, dataLen))

	name := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, os.WriteFile(name, b.Bytes(), 0o644))
	return name
}

func testConfig(presets ...string) config.Config {
	return config.Config{
		AutoStart:    true,
		Presets:      presets,
		Backend:      "null",
		PollInterval: 50 * time.Millisecond,
	}
}

type exitRecorder struct {
	codes []int
}

func (e *exitRecorder) exit(code int) { e.codes = append(e.codes, code) }

func run(t *testing.T, url string, cfg config.Config, feed func(w *os.File, hook *test.Hook)) ([]int, *test.Hook) {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	go feed(w, hook)

	rec := &exitRecorder{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(Options{URL: url, Config: cfg, Logger: log, Input: r, Exit: rec.exit})
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
	return rec.codes, hook
}

func hasMessage(hook *test.Hook, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// waitMessage polls the hook until msg is logged or a few seconds pass
func waitMessage(hook *test.Hook, msg string) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hasMessage(hook, msg) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestRunQuit(t *testing.T) {
	wav := writeWAV(t, 5)

	codes, hook := run(t, wav, testConfig(wav), func(w *os.File, hook *test.Hook) {
		waitMessage(hook, "Started (hit 'd' to stop or space to pause)")
		w.Write([]byte("pq"))
	})

	assert.Equal(t, []int{0}, codes)
	assert.True(t, hasMessage(hook, "Quitting"))
	assert.True(t, hasMessage(hook, "Started (hit 'd' to stop or space to pause)"))
}

func TestRunPresetAndControls(t *testing.T) {
	wav := writeWAV(t, 5)

	codes, hook := run(t, "", testConfig(wav), func(w *os.File, hook *test.Hook) {
		w.Write([]byte("1"))
		waitMessage(hook, "Started (hit 'd' to stop or space to pause)")
		w.Write([]byte(" "))
		waitMessage(hook, "Paused (hit space to resume)")
		w.Write([]byte("dz\x1b[C"))
		waitMessage(hook, "Stopped (hit 's' to start again)")
		w.Write([]byte("q"))
	})

	assert.Equal(t, []int{0}, codes)
	assert.True(t, hasMessage(hook, "Paused (hit space to resume)"))
	assert.True(t, hasMessage(hook, "Stopped (hit 's' to start again)"))
}

func TestRunUnsupportedSourceKeepsRunning(t *testing.T) {
	codes, hook := run(t, "rtsp://example.com/stream", testConfig(), func(w *os.File, _ *test.Hook) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("q"))
	})

	assert.Equal(t, []int{0}, codes)
	found := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			found = true
		}
	}
	assert.True(t, found, "expected the failed session to be logged")
}

func TestRunInputClosed(t *testing.T) {
	codes, _ := run(t, "", testConfig(), func(w *os.File, _ *test.Hook) {
		w.Close()
	})

	assert.Equal(t, []int{1}, codes)
}

func TestRunUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = "jack"

	codes, _ := run(t, "", cfg, func(w *os.File, _ *test.Hook) {})
	assert.Equal(t, []int{1}, codes)
}
