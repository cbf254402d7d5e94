//go:build !linux

package transport

// applyPlatformTuning is a no-op outside Linux; TCP_QUICKACK and
// TCP_DEFER_ACCEPT have no portable equivalent.
func applyPlatformTuning(fd int, cfg TuningConfig) {}

func applyPlatformListenerTuning(fd int, cfg TuningConfig) error { return nil }
