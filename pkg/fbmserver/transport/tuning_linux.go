//go:build linux

package transport

import "golang.org/x/sys/unix"

// applyPlatformTuning sets Linux-only per-connection options.
// Grounded on shockwave/pkg/shockwave/socket/tuning_linux.go.
func applyPlatformTuning(fd int, cfg TuningConfig) {
	if cfg.QuickAck {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	}
}

// applyPlatformListenerTuning sets TCP_DEFER_ACCEPT on the listening
// socket so the server isn't woken until request bytes actually arrive.
func applyPlatformListenerTuning(fd int, cfg TuningConfig) error {
	if !cfg.DeferAccept {
		return nil
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 5)
}
