// Package server wires the buffer manager, HTTP engine, compressor
// registry, and FBM websocket multiplexing into one listening process,
// the way shockwave/pkg/shockwave/server's BaseServer/ShockwaveServer
// wire http11 into a net.Listener accept loop.
package server

import (
	"time"

	"github.com/yourusername/fbmserver/pkg/fbmserver/buffer"
	"github.com/yourusername/fbmserver/pkg/fbmserver/compress"
	"github.com/yourusername/fbmserver/pkg/fbmserver/fbm/client"
	"github.com/yourusername/fbmserver/pkg/fbmserver/fbm/dispatch"
	"github.com/yourusername/fbmserver/pkg/fbmserver/httpengine"
	"github.com/yourusername/fbmserver/pkg/fbmserver/transport"
)

// Config holds everything needed to bring up a listener. Grounded on
// shockwave/pkg/shockwave/server.Config's field set and defaulting
// idiom; TLSConfig, AllocationMode, and the legacy-interface handler
// path are dropped (TLS termination and the arena/greentea allocator
// modes are this module's Non-goals and the teacher's own dead
// experiments, respectively — see DESIGN.md).
type Config struct {
	// Addr is the TCP address to listen on.
	Addr string

	// Handler serves ordinary HTTP requests. Any request that passes
	// wsconn.ValidateUpgrade is intercepted before reaching Handler and
	// upgraded to an FBM session instead, whether or not FBMHandler is set.
	Handler httpengine.Handler

	// FBMHandler answers FBM requests the peer sends in over the
	// upgraded connection. May be nil if this server never expects
	// inbound FBM requests (e.g. it only ever issues outbound Calls
	// through a Session obtained from FBMSessionStarted).
	FBMHandler dispatch.Handler

	// FBMSessionStarted, if set, is invoked once per upgraded
	// connection with its *dispatch.Session before the session's serve
	// loop starts, so application code can stash the session somewhere
	// it can later call Session.Call on to issue outbound FBM requests.
	FBMSessionStarted func(*dispatch.Session)

	Connection httpengine.Config
	Buffer     buffer.Config
	Compress   compress.Config
	Dispatch   dispatch.Config
	Correlator client.Config
	Tuning     transport.TuningConfig

	// MaxOutstandingBuffers caps how many buffer blocks may be out of
	// buffer.Pool at the same time; 0 means unbounded.
	MaxOutstandingBuffers int

	// MaxConcurrentConnections bounds accepted connections; 0 means
	// unlimited.
	MaxConcurrentConnections int

	// WSMessageBufferSize sizes each upgraded connection's FBM message
	// reassembly buffer (wsconn.Conn's fixed scratch area).
	WSMessageBufferSize int

	// ShutdownGracePeriod bounds how long ShutdownDefault waits for
	// in-flight connections to finish before closing them.
	ShutdownGracePeriod time.Duration
}

// DefaultConfig mirrors shockwave/pkg/shockwave/server.DefaultConfig's
// values where the concern carries over unchanged.
func DefaultConfig() Config {
	return Config{
		Addr:                     ":8080",
		Connection:               httpengine.DefaultConfig(),
		Buffer:                   buffer.DefaultConfig(),
		Compress:                 compress.DefaultConfig(),
		Dispatch:                 dispatch.DefaultConfig(),
		Correlator:               client.DefaultConfig(),
		Tuning:                   transport.DefaultTuningConfig(),
		MaxOutstandingBuffers:    0,
		MaxConcurrentConnections: 0,
		WSMessageBufferSize:      65536,
		ShutdownGracePeriod:      30 * time.Second,
	}
}
