// ABOUTME: Single-byte input poller with timeout and wake-up
// ABOUTME: Polls the input descriptor together with a self-pipe written by Wake
package terminal

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Result says why Poll returned
type Result int

const (
	// ResultByte means a byte was read
	ResultByte Result = iota
	// ResultTimeout means no input arrived before the timeout
	ResultTimeout
	// ResultWake means Wake was called or the poll was interrupted
	ResultWake
)

func (r Result) String() string {
	switch r {
	case ResultByte:
		return "byte"
	case ResultTimeout:
		return "timeout"
	case ResultWake:
		return "wake"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Poller reads single bytes from fd
type Poller struct {
	fd     int
	wakeR  int
	wakeW  int
	closed atomic.Bool
	once   sync.Once
}

// NewPoller creates a poller reading from fd
func NewPoller(fd int) (*Poller, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("failed to create wake pipe: %w", err)
	}
	for _, pfd := range p {
		unix.CloseOnExec(pfd)
		if err := unix.SetNonblock(pfd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("failed to configure wake pipe: %w", err)
		}
	}
	return &Poller{fd: fd, wakeR: p[0], wakeW: p[1]}, nil
}

// Poll waits up to timeout for one byte. End of input is an error.
func (p *Poller) Poll(timeout time.Duration) (byte, Result, error) {
	if p.closed.Load() {
		return 0, 0, errors.New("poller closed")
	}

	fds := []unix.PollFd{
		{Fd: int32(p.fd), Events: unix.POLLIN},
		{Fd: int32(p.wakeR), Events: unix.POLLIN},
	}

	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, ResultWake, nil
		}
		return 0, 0, fmt.Errorf("poll failed: %w", err)
	}
	if n == 0 {
		return 0, ResultTimeout, nil
	}

	if fds[0].Revents&unix.POLLNVAL != 0 {
		return 0, 0, fmt.Errorf("poll failed: invalid input descriptor %d", p.fd)
	}
	if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		return p.readByte()
	}

	p.drain()
	return 0, ResultWake, nil
}

func (p *Poller) readByte() (byte, Result, error) {
	var b [1]byte
	n, err := unix.Read(p.fd, b[:])
	if err != nil {
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			return 0, ResultWake, nil
		}
		return 0, 0, fmt.Errorf("read failed: %w", err)
	}
	if n == 0 {
		return 0, 0, fmt.Errorf("read failed: %w", io.EOF)
	}
	return b[0], ResultByte, nil
}

func (p *Poller) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Wake makes a blocked or the next Poll return ResultWake. Safe from any goroutine.
func (p *Poller) Wake() {
	if p.closed.Load() {
		return
	}
	// A full pipe already has a wake-up pending
	_, _ = unix.Write(p.wakeW, []byte{1})
}

// Close releases the wake pipe. The input descriptor is not closed.
func (p *Poller) Close() error {
	var err error
	p.once.Do(func() {
		p.closed.Store(true)
		if cerr := unix.Close(p.wakeW); cerr != nil {
			err = cerr
		}
		if cerr := unix.Close(p.wakeR); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
