package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// TuningConfig carries the socket options applied to each accepted
// connection. Zero values mean "leave the system default alone".
// Grounded on shockwave/pkg/shockwave/socket/tuning.go's Config, with
// the raw syscall package swapped for golang.org/x/sys/unix so the
// teacher's own go.mod dependency is actually exercised rather than
// listed and unused.
type TuningConfig struct {
	// NoDelay disables Nagle's algorithm. Recommended for HTTP/1.1.
	NoDelay bool

	// RecvBuffer and SendBuffer set SO_RCVBUF/SO_SNDBUF in bytes. 0
	// leaves the system default.
	RecvBuffer int
	SendBuffer int

	// KeepAlive enables SO_KEEPALIVE.
	KeepAlive bool

	// QuickAck and DeferAccept are Linux-only (TCP_QUICKACK,
	// TCP_DEFER_ACCEPT); ignored elsewhere.
	QuickAck    bool
	DeferAccept bool
}

// DefaultTuningConfig matches the defaults recommended for an
// HTTP/1.x server handling many short-lived connections.
func DefaultTuningConfig() TuningConfig {
	return TuningConfig{
		NoDelay:     true,
		RecvBuffer:  256 * 1024,
		SendBuffer:  256 * 1024,
		KeepAlive:   true,
		QuickAck:    true,
		DeferAccept: true,
	}
}

// ApplyTuning sets cross-platform socket options on conn. Errors from
// non-critical options (buffer sizes, keepalive) are ignored; only a
// failure to set TCP_NODELAY is returned, matching the teacher's
// Apply's "non-critical options log warnings but don't fail" policy
// (here: silently skipped, since this engine doesn't own a logger
// handle at the socket layer — callers that care can log the error
// this function does return).
func ApplyTuning(conn net.Conn, cfg TuningConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var nodelayErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
				nodelayErr = err
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBuffer)
		}
		if cfg.SendBuffer > 0 {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBuffer)
		}
		if cfg.KeepAlive {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
		}
		applyPlatformTuning(int(fd), cfg)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return nodelayErr
}

// ApplyListenerTuning sets listener-wide options (e.g. TCP_DEFER_ACCEPT)
// that must be in place before Accept is called.
func ApplyListenerTuning(listener net.Listener, cfg TuningConfig) error {
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return nil
	}
	file, err := tcpListener.File()
	if err != nil {
		return err
	}
	defer file.Close()
	return applyPlatformListenerTuning(int(file.Fd()), cfg)
}
