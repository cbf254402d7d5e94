// Package client implements the FBM correlator (§4.8): it sends
// request frames over a WebSocket connection and matches responses
// back to their callers by message id, since frames can and do arrive
// out of order relative to the requests that produced them.
package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/fbmserver/pkg/fbmserver/fbm"
	"github.com/yourusername/fbmserver/pkg/fbmserver/wsconn"
)

var (
	ErrTimeout        = errors.New("fbm/client: request timed out")
	ErrCorrelatorShut = errors.New("fbm/client: correlator is shut down")
	ErrPoolExhausted  = errors.New("fbm/client: no free request record (max in-flight reached)")
)

// Config mirrors shockwave's per-package Config/DefaultConfig idiom.
type Config struct {
	// MaxInFlight bounds how many requests may be outstanding at once;
	// it sizes the fixed pool of request records (§4.8's "fixed-size
	// pool of request records").
	MaxInFlight int
	// FrameBufferSize sizes each record's scratch buffer, used to
	// serialize the outgoing request frame without allocating.
	FrameBufferSize int
	// DefaultTimeout applies to Send calls made without an explicit
	// deadline on their context; zero means wait indefinitely.
	DefaultTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxInFlight:     256,
		FrameBufferSize: 4096,
		DefaultTimeout:  30 * time.Second,
	}
}

// record is one rentable slot correlating a sent request to its
// eventual response. Records are reused across Send calls; only the
// done channel is replaced each rental, since a closed channel can't
// be reopened.
type record struct {
	id       uint32
	buf      []byte
	done     chan struct{}
	response *fbm.Message
	err      error
}

// Correlator sends FBM requests over conn and delivers responses back
// to the caller that sent them, matched by message id (§4.8).
// Writes are serialized by writeMu (single writer per §5's ordering
// guarantees); HandleResponse is meant to be driven by a single
// receive loop (Run), so reads stay single-consumer.
type Correlator struct {
	conn   *wsconn.Conn
	cfg    Config
	nextID atomic.Uint32

	mu      sync.Mutex
	pending map[uint32]*record

	free chan *record

	writeMu sync.Mutex

	strayResponses atomic.Int64
	cancelled      atomic.Int64

	closed atomic.Bool
}

// NewCorrelator builds a correlator over conn with a fixed pool of
// cfg.MaxInFlight request records.
func NewCorrelator(conn *wsconn.Conn, cfg Config) *Correlator {
	c := &Correlator{
		conn:    conn,
		cfg:     cfg,
		pending: make(map[uint32]*record, cfg.MaxInFlight),
		free:    make(chan *record, cfg.MaxInFlight),
	}
	for i := 0; i < cfg.MaxInFlight; i++ {
		c.free <- &record{buf: make([]byte, cfg.FrameBufferSize)}
	}
	return c
}

// Send assigns msg a fresh id, writes it, and blocks until the
// matching response arrives, ctx is cancelled, or the configured
// timeout (if ctx carries no deadline) elapses.
func (c *Correlator) Send(ctx context.Context, msg *fbm.Message) (*fbm.Message, error) {
	if c.closed.Load() {
		return nil, ErrCorrelatorShut
	}

	if c.cfg.DefaultTimeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.DefaultTimeout)
			defer cancel()
		}
	}

	var rec *record
	select {
	case rec = <-c.free:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	rec.done = make(chan struct{})
	rec.response = nil
	rec.err = nil

	id := c.nextID.Add(1)
	rec.id = id
	msg.ID = id

	c.mu.Lock()
	c.pending[id] = rec
	c.mu.Unlock()

	n, err := fbm.Encode(rec.buf, msg)
	if err != nil {
		c.forget(id)
		c.release(rec)
		return nil, err
	}

	c.writeMu.Lock()
	err = c.conn.WriteBinary(rec.buf[:n])
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		c.release(rec)
		return nil, err
	}

	select {
	case <-rec.done:
		resp, respErr := rec.response, rec.err
		c.release(rec)
		return resp, respErr
	case <-ctx.Done():
		// Cancellation removes the record from the map before the
		// response arrives (§4.8); a later matching frame is silently
		// discarded by HandleResponse's stray-response path.
		c.forget(id)
		c.cancelled.Add(1)
		c.release(rec)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// Run drives conn's receive loop, decoding each incoming message and
// handing it to HandleResponse, until conn.ReadMessage errors (e.g.
// the peer closed the connection). It is meant to run in its own
// goroutine for the lifetime of the connection.
func (c *Correlator) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.Shutdown(err)
			return err
		}
		msg, _, err := fbm.Decode(payload)
		if err != nil {
			continue
		}
		c.HandleResponse(msg)
	}
}

// TryDeliver matches msg to its pending request by id and wakes the
// waiting Send call, reporting whether a match was found. Unlike
// HandleResponse it does not count a miss as a stray response — it's
// meant for a demultiplexing read loop (dispatch.Session) that also
// receives frames that were never sent as requests in the first place
// (peer-initiated FBM requests), which aren't "stray" in any meaningful
// sense.
func (c *Correlator) TryDeliver(msg *fbm.Message) bool {
	c.mu.Lock()
	rec, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	rec.response = msg
	close(rec.done)
	return true
}

// HandleResponse matches msg to its pending request by id and wakes
// the waiting Send call. It reports false (and counts a stray
// response) when no pending request matches — msg arrived after its
// Send call was cancelled, or it was never a known id. Use this from a
// receive loop where every frame is known to be a response (a pure
// client connection with no inbound-request side); for a multiplexed
// connection that also receives requests, use TryDeliver instead.
func (c *Correlator) HandleResponse(msg *fbm.Message) bool {
	if c.TryDeliver(msg) {
		return true
	}
	c.strayResponses.Add(1)
	return false
}

// Shutdown fails every still-pending Send call with err and marks the
// correlator closed, refusing further Send calls.
func (c *Correlator) Shutdown(err error) {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint32]*record)
	c.mu.Unlock()

	for _, rec := range pending {
		rec.err = err
		close(rec.done)
	}
}

func (c *Correlator) forget(id uint32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Correlator) release(rec *record) {
	rec.response = nil
	rec.err = nil
	c.free <- rec
}

// Stats reports correlator-level counters for observability.
type Stats struct {
	StrayResponses int64
	Cancelled      int64
	InFlight       int
}

func (c *Correlator) Stats() Stats {
	c.mu.Lock()
	inFlight := len(c.pending)
	c.mu.Unlock()
	return Stats{
		StrayResponses: c.strayResponses.Load(),
		Cancelled:      c.cancelled.Load(),
		InFlight:       inFlight,
	}
}
