package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/fbmserver/internal/corelog"
	"github.com/yourusername/fbmserver/pkg/fbmserver/buffer"
	"github.com/yourusername/fbmserver/pkg/fbmserver/compress"
	"github.com/yourusername/fbmserver/pkg/fbmserver/fbm"
	"github.com/yourusername/fbmserver/pkg/fbmserver/fbm/dispatch"
	"github.com/yourusername/fbmserver/pkg/fbmserver/httpengine"
	"github.com/yourusername/fbmserver/pkg/fbmserver/transport"
	"github.com/yourusername/fbmserver/pkg/fbmserver/wsconn"
)

var ErrServerClosed = errors.New("server: already shut down")

// Server accepts connections, runs the HTTP engine over each, and
// transparently upgrades any request that passes
// wsconn.ValidateUpgrade into a multiplexed FBM session. Grounded on
// shockwave/pkg/shockwave/server's BaseServer (connection tracking,
// semaphore-bounded accept loop, Shutdown/Close) generalized to host
// both protocols.
type Server struct {
	cfg Config

	bufferPool *buffer.Pool
	dispatcher *dispatch.Dispatcher
	compressor *compress.Registry
	log        *zap.Logger

	listener net.Listener
	stats    *Stats

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	done     chan struct{}
	shutdown bool
	wg       sync.WaitGroup

	connSem chan struct{}
}

// New builds a Server from cfg. cfg.Handler and/or cfg.FBMHandler
// should be set; a server with neither answers every HTTP request with
// 404 and never expects inbound FBM requests (but can still make
// outbound FBM Calls via FBMSessionStarted).
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	s := &Server{
		cfg:        cfg,
		bufferPool: buffer.NewPool(cfg.Buffer, cfg.MaxOutstandingBuffers),
		dispatcher: dispatch.NewDispatcher(cfg.Dispatch),
		compressor: compress.NewDefaultRegistry(cfg.Compress),
		log:        corelog.L(),
		stats:      newStats(),
		conns:      make(map[net.Conn]struct{}),
		done:       make(chan struct{}),
	}
	if cfg.MaxConcurrentConnections > 0 {
		s.connSem = make(chan struct{}, cfg.MaxConcurrentConnections)
	}
	return s
}

// Compressors exposes the server's negotiated compressor registry so
// handlers can wrap their own response writer when they want
// compression (§4.5); the engine's own ResponseWriter doesn't impose
// one automatically, matching the teacher's "bring your own writer"
// composition for everything past the transport.
func (s *Server) Compressors() *compress.Registry { return s.compressor }

func (s *Server) Stats() *Stats { return s.stats }

// ListenAndServe listens on cfg.Addr and serves until Shutdown/Close.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on l until it errors or the server shuts down.
func (s *Server) Serve(l net.Listener) error {
	s.listener = l
	defer l.Close()

	_ = transport.ApplyListenerTuning(l, s.cfg.Tuning)

	for {
		s.mu.Lock()
		shuttingDown := s.shutdown
		s.mu.Unlock()
		if shuttingDown {
			return nil
		}

		if s.connSem != nil {
			select {
			case s.connSem <- struct{}{}:
			case <-s.done:
				return nil
			}
		}

		conn, err := l.Accept()
		if err != nil {
			if s.connSem != nil {
				<-s.connSem
			}
			s.mu.Lock()
			shuttingDown = s.shutdown
			s.mu.Unlock()
			if shuttingDown {
				return nil
			}
			s.stats.ConnectionErrors.Add(1)
			continue
		}

		s.stats.TotalConnections.Add(1)
		s.trackConn(conn)
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.stats.ActiveConnections.Add(1)
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.stats.ActiveConnections.Add(-1)
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(conn)
	defer func() {
		if s.connSem != nil {
			<-s.connSem
		}
	}()
	defer conn.Close()

	_ = transport.ApplyTuning(conn, s.cfg.Tuning)
	stream := transport.NewTCPStream(conn, false)

	c, err := httpengine.NewConnection(stream, s.bufferPool, s.cfg.Connection, s.wrapHandler())
	if err != nil {
		s.stats.ConnectionErrors.Add(1)
		s.log.Warn("failed to create connection", zap.Error(err), zap.String("remote_addr", conn.RemoteAddr().String()))
		return
	}

	if err := c.Serve(); err != nil && !errors.Is(err, io.EOF) {
		s.stats.RequestErrors.Add(1)
	}
}

// wrapHandler builds the httpengine.Handler that intercepts websocket
// handshakes (promoting them to FBM sessions) before falling through
// to cfg.Handler.
func (s *Server) wrapHandler() httpengine.Handler {
	return func(req *httpengine.Request, rw *httpengine.ResponseWriter, cancel <-chan struct{}) httpengine.Outcome {
		s.stats.TotalRequests.Add(1)

		if hs, err := wsconn.ValidateUpgrade(req); err == nil {
			return httpengine.Outcome{
				Kind:           httpengine.UpgradeProtocol,
				UpgradeHeaders: hs.UpgradeHeaders(),
				Upgrade:        s.upgradeToFBM(),
			}
		}

		if s.cfg.Handler != nil {
			return s.cfg.Handler(req, rw, cancel)
		}

		rw.WriteHeader(404)
		return httpengine.Outcome{Kind: httpengine.Completed}
	}
}

// upgradeToFBM returns the AlternateProtocolHandler that takes over
// the raw stream once the 101 response has been flushed, running an
// FBM dispatch.Session over it until the peer disconnects.
func (s *Server) upgradeToFBM() httpengine.AlternateProtocolHandler {
	return func(stream transport.Stream, bufferedInput io.Reader) {
		ws := wsconn.NewConn(&leadingReader{pre: bufferedInput, stream: stream}, make([]byte, s.cfg.WSMessageBufferSize))
		sess := dispatch.NewSession(ws, s.dispatcher, s.cfg.Correlator, s.countedFBMHandler())

		if s.cfg.FBMSessionStarted != nil {
			s.cfg.FBMSessionStarted(sess)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-s.done:
				cancel()
			case <-ctx.Done():
			}
		}()

		_ = sess.Serve(ctx)

		stats := sess.Stats()
		s.stats.FBMCancelledResponses.Add(stats.Cancelled)
		s.stats.FBMStrayResponses.Add(stats.StrayResponses)
	}
}

// countedFBMHandler wraps cfg.FBMHandler so Stats().FBMActiveRequests
// reflects live inbound FBM requests across every session.
func (s *Server) countedFBMHandler() dispatch.Handler {
	if s.cfg.FBMHandler == nil {
		return nil
	}
	return func(ctx context.Context, req *fbm.Message, body dispatch.MessageBody) (*fbm.Message, error) {
		s.stats.FBMActiveRequests.Add(1)
		defer s.stats.FBMActiveRequests.Add(-1)
		return s.cfg.FBMHandler(ctx, req, body)
	}
}

// leadingReader drains pre (leftover bytes the HTTP engine's bufio.Reader
// had already buffered past the 101 response) before falling through to
// stream, so no bytes the peer sent immediately after the handshake are lost.
type leadingReader struct {
	pre    io.Reader
	stream transport.Stream
	drained bool
}

func (r *leadingReader) Read(buf []byte) (int, error) {
	if !r.drained {
		n, err := r.pre.Read(buf)
		if err == io.EOF {
			r.drained = true
			if n > 0 {
				return n, nil
			}
		} else if err != nil {
			return n, err
		} else if n > 0 {
			return n, nil
		}
	}
	return r.stream.Read(buf)
}

func (r *leadingReader) Write(buf []byte) (int, error)  { return r.stream.Write(buf) }
func (r *leadingReader) Flush() error                    { return r.stream.Flush() }
func (r *leadingReader) Close() error                    { return r.stream.Close() }
func (r *leadingReader) LocalAddr() net.Addr             { return r.stream.LocalAddr() }
func (r *leadingReader) PeerAddr() net.Addr              { return r.stream.PeerAddr() }
func (r *leadingReader) Secure() bool                    { return r.stream.Secure() }
func (r *leadingReader) SetReadTimeout(d time.Duration) error  { return r.stream.SetReadTimeout(d) }
func (r *leadingReader) SetWriteTimeout(d time.Duration) error { return r.stream.SetWriteTimeout(d) }

// Shutdown stops accepting new connections and waits for in-flight
// ones to finish, or ctx to expire (forcing a close of everything
// still open).
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	close(s.done)

	waitDone := make(chan struct{})
	go func() { s.wg.Wait(); close(waitDone) }()

	select {
	case <-waitDone:
		return nil
	case <-ctx.Done():
		s.closeAllConns()
		return ctx.Err()
	}
}

// ShutdownDefault calls Shutdown with a context bounded by
// cfg.ShutdownGracePeriod.
func (s *Server) ShutdownDefault() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()
	return s.Shutdown(ctx)
}

// Close immediately closes the listener and every active connection.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	close(s.done)
	s.closeAllConns()
	s.wg.Wait()
	return nil
}

func (s *Server) closeAllConns() {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
