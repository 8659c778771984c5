//go:build darwin || freebsd || netbsd || openbsd

// ABOUTME: BSD and Darwin termios ioctl requests
// ABOUTME: Selected at build time for RawMode
package terminal

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA
)
