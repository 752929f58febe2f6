//go:build !linux

package termutil

// EnableISIG is a no-op on platforms without TCGETS/TCSETS.
func EnableISIG(fd int) {
	_ = fd
}
