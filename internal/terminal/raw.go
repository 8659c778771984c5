// ABOUTME: Scoped raw input mode for a terminal file descriptor
// ABOUTME: Disables line buffering and echo while keeping signal generation intact
package terminal

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// RawMode holds the terminal state saved by Acquire
type RawMode struct {
	fd   int
	old  *term.State
	once sync.Once
	err  error
}

// Acquire switches fd to unbuffered, no-echo input. A descriptor that is not
// a terminal is left untouched and Restore is a no-op.
func Acquire(fd int) (*RawMode, error) {
	if !term.IsTerminal(fd) {
		return &RawMode{fd: fd}, nil
	}

	old, err := term.GetState(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to save terminal state: %w", err)
	}

	// term.MakeRaw would also clear ISIG and OPOST; Ctrl-C must still raise SIGINT
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("failed to read termios: %w", err)
	}
	t.Lflag &^= unix.ICANON | unix.ECHO
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, t); err != nil {
		return nil, fmt.Errorf("failed to set termios: %w", err)
	}

	return &RawMode{fd: fd, old: old}, nil
}

// Active reports whether the terminal mode was changed
func (r *RawMode) Active() bool {
	return r.old != nil
}

// Restore puts back the saved terminal state. Only the first call has an effect.
func (r *RawMode) Restore() error {
	r.once.Do(func() {
		if r.old != nil {
			r.err = term.Restore(r.fd, r.old)
		}
	})
	return r.err
}
