//go:build !darwin && !linux

package termutil

// EnsureTTYForegroundSelf is a no-op on platforms without tcsetpgrp.
func EnsureTTYForegroundSelf() {}
