//go:build darwin || linux

// Package termutil restores terminal state after interactive CLI sessions.
package termutil

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const foregroundTTYPath = "/dev/tty"

const (
	// foregroundRetryTimeout bounds how long foreground restoration is
	// retried after an interactive session ends.
	foregroundRetryTimeout = 1 * time.Second

	// foregroundRetryInterval bounds how often tcsetpgrp is retried.
	foregroundRetryInterval = 50 * time.Millisecond
)

// EnsureTTYForegroundSelf best-effort makes the current process group the
// foreground process group for the controlling tty.
//
// When an interactive CLI session exits (or is killed), the foreground
// process group can be left pointing at the dead child. The bridge then
// stops receiving tty input, including Ctrl+C, and shutdown appears stuck.
func EnsureTTYForegroundSelf() {
	tty, err := os.OpenFile(foregroundTTYPath, os.O_RDWR, 0)
	if err != nil {
		return
	}
	defer func() { _ = tty.Close() }()

	fd := int(tty.Fd())
	pgid := syscall.Getpgrp()
	if pgid <= 0 {
		return
	}

	deadline := time.Now().Add(foregroundRetryTimeout)
	for {
		current, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
		if err == nil && current == pgid {
			return
		}
		withIgnoredJobControlSignals(func() {
			_ = unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pgid)
		})
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(foregroundRetryInterval)
	}
}

// withIgnoredJobControlSignals runs fn while ignoring SIGTTOU/SIGTTIN.
//
// tcsetpgrp from a background process group raises SIGTTOU; if that stops
// the bridge, the user's terminal is left in raw mode.
func withIgnoredJobControlSignals(fn func()) {
	if fn == nil {
		return
	}
	signal.Ignore(syscall.SIGTTOU, syscall.SIGTTIN)
	defer signal.Reset(syscall.SIGTTOU, syscall.SIGTTIN)
	fn()
}
