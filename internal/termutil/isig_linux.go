//go:build linux

package termutil

import "golang.org/x/sys/unix"

// EnableISIG best-effort re-enables ISIG on the controlling tty.
//
// term.MakeRaw disables ISIG, so Ctrl+C stops generating SIGINT and is
// delivered to the pty as a raw ETX byte instead. The bridge relies on
// Ctrl+C for shutdown, so ISIG is restored while canonical mode stays off.
func EnableISIG(fd int) {
	if fd < 0 {
		return
	}
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil || termios == nil {
		return
	}
	termios.Lflag |= unix.ISIG
	_ = unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}
