// ABOUTME: Linux termios ioctl requests
// ABOUTME: Selected at build time for RawMode
package terminal

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS
)
