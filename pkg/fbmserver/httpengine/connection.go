package httpengine

import (
	"bufio"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/fbmserver/internal/corelog"
	"github.com/yourusername/fbmserver/pkg/fbmserver/buffer"
	"github.com/yourusername/fbmserver/pkg/fbmserver/transport"
)

// State is the connection's lifecycle state. Named exactly per the
// documented transitions: a request turn moves
// Idle -> ReadingHeaders -> ReadingBody -> Dispatching -> WritingResponse
// -> (WaitingKeepAlive -> ReadingHeaders again, or Closing), and a
// handler-signaled protocol switch moves Dispatching -> Upgraded,
// after which the engine no longer owns the transport.
type State int32

const (
	StateIdle State = iota
	StateReadingHeaders
	StateReadingBody
	StateDispatching
	StateWritingResponse
	StateWaitingKeepAlive
	StateClosing
	StateUpgraded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReadingHeaders:
		return "reading_headers"
	case StateReadingBody:
		return "reading_body"
	case StateDispatching:
		return "dispatching"
	case StateWritingResponse:
		return "writing_response"
	case StateWaitingKeepAlive:
		return "waiting_keepalive"
	case StateClosing:
		return "closing"
	case StateUpgraded:
		return "upgraded"
	default:
		return "unknown"
	}
}

// OutcomeKind is the handler's verdict for one request turn.
type OutcomeKind int

const (
	Completed OutcomeKind = iota
	TerminateConnection
	UpgradeProtocol
)

// AlternateProtocolHandler takes ownership of the raw transport after
// a 101 response has been flushed. The connection engine never touches
// the transport again once this returns.
type AlternateProtocolHandler func(stream transport.Stream, bufferedInput io.Reader)

// Outcome is returned by a Handler to tell the connection engine what
// to do next, per spec.md §6: Completed, TerminateConnection(optional
// status), or Upgrade(alternate_protocol).
type Outcome struct {
	Kind OutcomeKind

	// TerminateStatus, if non-zero, is written as the response status
	// before closing (TerminateConnection only).
	TerminateStatus int

	// Upgrade is invoked after the 101 response is flushed
	// (UpgradeProtocol only).
	Upgrade AlternateProtocolHandler

	// UpgradeHeaders are added to the 101 response before Upgrade runs.
	UpgradeHeaders map[string]string
}

// Handler processes one parsed request and decides the connection's
// fate. Cancel is closed if the connection's context is canceled
// mid-handler (spec.md §5: cancellation during WritingResponse aborts
// the connection; cancellation during ReadingHeaders/WaitingKeepAlive
// is a clean close, handled by the engine before the handler runs).
type Handler func(req *Request, rw *ResponseWriter, cancel <-chan struct{}) Outcome

// Config holds the tunables for one Connection.
type Config struct {
	KeepAliveTimeout time.Duration
	MaxRequests      int
	ReadBufferSize   int
	WriteBufferSize  int
}

// DefaultConfig returns production defaults: 60s keep-alive idle
// timeout, unlimited requests per connection, 4KiB bufio windows atop
// the fixed buffer.Block segments.
func DefaultConfig() Config {
	return Config{
		KeepAliveTimeout: 60 * time.Second,
		MaxRequests:      0,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
}

// Connection drives one accepted transport.Stream through the
// HTTP/1.x request/response cycle, reusing one buffer.Manager (and
// its aliased header segment) across every keep-alive turn.
//
// Grounded on shockwave/pkg/shockwave/http11/connection.go's
// lock-free atomic state machine, renamed to spec.md's state names and
// rebuilt around transport.Stream + buffer.Manager instead of a bare
// net.Conn and growable parser buffer.
type Connection struct {
	state        atomic.Int32
	lastActivity atomic.Int64
	requests     atomic.Int32
	closed       atomic.Bool

	stream transport.Stream
	reader *bufio.Reader
	writer *bufio.Writer

	bufMgr *buffer.Manager
	parser *Parser
	handler Handler

	cfg     Config
	closeCh chan struct{}
	log     *zap.Logger
}

// NewConnection builds a Connection over stream, allocating its
// buffer.Block from pool and its Parser/Request/ResponseWriter from
// the package-level pools.
func NewConnection(stream transport.Stream, pool *buffer.Pool, cfg Config, handler Handler) (*Connection, error) {
	bufMgr, err := buffer.Allocate(pool)
	if err != nil {
		return nil, err
	}

	readSize := cfg.ReadBufferSize
	if readSize <= 0 {
		readSize = DefaultConfig().ReadBufferSize
	}
	writeSize := cfg.WriteBufferSize
	if writeSize <= 0 {
		writeSize = DefaultConfig().WriteBufferSize
	}

	c := &Connection{
		stream:  stream,
		reader:  bufio.NewReaderSize(stream, readSize),
		writer:  bufio.NewWriterSize(stream, writeSize),
		bufMgr:  bufMgr,
		parser:  GetParser(),
		handler: handler,
		cfg:     cfg,
		closeCh: make(chan struct{}),
		log:     corelog.L(),
	}
	c.state.Store(int32(StateIdle))
	c.lastActivity.Store(time.Now().UnixNano())
	return c, nil
}

func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) setState(s State) {
	c.state.Store(int32(s))
	c.lastActivity.Store(time.Now().UnixNano())
}

// Serve runs the request loop until the connection closes, returning
// nil on a clean close (EOF between requests) or the error that forced
// the close.
func (c *Connection) Serve() error {
	defer c.cleanup()

	for {
		if c.shouldCloseNow() {
			c.setState(StateClosing)
			return nil
		}

		if err := c.applyKeepAliveDeadline(); err != nil {
			return err
		}

		if err := c.serveOneRequest(); err != nil {
			if err == io.EOF || err == ErrUnexpectedEOF {
				c.setState(StateClosing)
				c.log.Info("connection closed",
					zap.String("remote_addr", c.addrString()),
					zap.String("kind", "eof"))
				return nil
			}
			c.setState(StateClosing)
			c.log.Info("connection closed",
				zap.String("remote_addr", c.addrString()),
				zap.String("kind", "error"),
				zap.Error(err))
			return err
		}
	}
}

// serveOneRequest runs exactly one state-machine turn: read headers,
// read/discard body, dispatch, write response, decide keep-alive.
// It returns io.EOF when the connection should close after this turn,
// including after an upgrade has handed the transport off, which Serve
// treats as a clean close.
func (c *Connection) serveOneRequest() error {
	c.setState(StateReadingHeaders)

	headerBuf, err := c.bufMgr.Block().RequestHeaderBuf()
	if err != nil {
		return err
	}

	req := GetRequest()
	req.RemoteAddr = c.addrString()

	if err := c.parser.Parse(c.reader, req, headerBuf); err != nil {
		PutRequest(req)
		return err
	}

	c.setState(StateReadingBody)
	if err := c.parser.SetupBodyReader(req, c.reader); err != nil {
		PutRequest(req)
		return err
	}

	requestNum := c.requests.Add(1)
	willCloseAfterThis := c.cfg.MaxRequests > 0 && requestNum >= int32(c.cfg.MaxRequests)

	c.setState(StateDispatching)

	// The response-header view becomes valid only now: the request
	// header view's lifetime ends here (spec.md §3's aliasing
	// invariant), enforced by the buffer.Block's phase tag.
	c.bufMgr.Block().BeginResponsePhase()

	rw := GetResponseWriter(c.writer)
	if chunkBuf, err := c.bufMgr.Block().ChunkAccumulatorBuf(); err == nil {
		rw.UseChunkAccumulator(chunkBuf)
	}
	if willCloseAfterThis {
		rw.Header().Set(headerConnection, headerClose)
	}

	outcome := c.handler(req, rw, c.closeCh)

	c.setState(StateWritingResponse)

	// The response-header view becomes valid only now: the request
	// header view's lifetime ends here (spec.md §3's aliasing
	// invariant), enforced by the buffer.Block's phase tag.
	c.bufMgr.Block().BeginResponsePhase()

	switch outcome.Kind {
	case UpgradeProtocol:
		return c.handleUpgrade(req, rw, outcome)
	case TerminateConnection:
		if outcome.TerminateStatus != 0 {
			rw.WriteHeader(outcome.TerminateStatus)
		}
		rw.Header().Set(headerConnection, headerClose)
	}

	if err := rw.Flush(); err != nil {
		PutResponseWriter(rw)
		PutRequest(req)
		return err
	}

	shouldClose := outcome.Kind == TerminateConnection ||
		req.Close ||
		bytesEqualCaseInsensitive(rw.Header().Get(headerConnection), headerClose) ||
		willCloseAfterThis

	PutResponseWriter(rw)
	PutRequest(req)

	c.bufMgr.Block().BeginRequestPhase()

	if shouldClose {
		c.setState(StateClosing)
		return io.EOF
	}

	c.setState(StateWaitingKeepAlive)
	return nil
}

func (c *Connection) handleUpgrade(req *Request, rw *ResponseWriter, outcome Outcome) error {
	rw.WriteHeader(101)
	rw.Header().Set(headerUpgrade, []byte("websocket"))
	rw.Header().Set(headerConnection, []byte("Upgrade"))
	for k, v := range outcome.UpgradeHeaders {
		rw.Header().Set([]byte(k), []byte(v))
	}
	if err := rw.Flush(); err != nil {
		PutResponseWriter(rw)
		PutRequest(req)
		return err
	}
	if err := c.writer.Flush(); err != nil {
		PutResponseWriter(rw)
		PutRequest(req)
		return err
	}

	c.setState(StateUpgraded)
	if outcome.Upgrade != nil {
		outcome.Upgrade(c.stream, c.reader)
	}

	PutResponseWriter(rw)
	PutRequest(req)
	return io.EOF
}

func (c *Connection) shouldCloseNow() bool {
	if c.closed.Load() {
		return true
	}
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Connection) applyKeepAliveDeadline() error {
	if c.cfg.KeepAliveTimeout <= 0 {
		return nil
	}
	return c.stream.SetReadTimeout(c.cfg.KeepAliveTimeout)
}

// Close closes the connection's transport exactly once.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.closeCh)
	c.setState(StateClosing)
	return c.stream.Close()
}

func (c *Connection) cleanup() {
	if c.parser != nil {
		PutParser(c.parser)
		c.parser = nil
	}
	if c.bufMgr != nil {
		c.bufMgr.FreeAll()
		c.bufMgr = nil
	}
}

func (c *Connection) addrString() string {
	if c.stream == nil {
		return ""
	}
	if addr := c.stream.PeerAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// RequestCount returns the number of requests served on this
// connection so far.
func (c *Connection) RequestCount() int { return int(c.requests.Load()) }
