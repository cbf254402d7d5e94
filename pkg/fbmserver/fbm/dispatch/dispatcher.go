// Package dispatch implements the FBM server dispatcher (§4.9): for
// each frame received over an upgraded WebSocket connection it invokes
// a user handler and replies with the same message id, running
// handlers in parallel while keeping writes back to the connection
// serialized behind a single writer.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"github.com/yourusername/fbmserver/pkg/fbmserver/fbm"
	"github.com/yourusername/fbmserver/pkg/fbmserver/wsconn"
)

var (
	// ErrBodyTooLarge is returned to the peer (as a status header) when
	// a request's body exceeds the dispatcher's configured window.
	ErrBodyTooLarge = errors.New("fbm/dispatch: request body exceeds configured window")
	// ErrHandlerPanicked is the status sent back when a handler panics;
	// the panic is recovered so one bad handler can't take down the
	// session.
	ErrHandlerPanicked = errors.New("fbm/dispatch: handler panicked")
)

// Config mirrors shockwave's per-package Config/DefaultConfig idiom.
type Config struct {
	// MaxConcurrentHandlers bounds how many handler invocations may run
	// at once for a single session (§4.9's "MAY invoke multiple
	// handlers in parallel").
	MaxConcurrentHandlers int
	// BodyWindowSize sizes the pooled scratch block each request body
	// is copied into.
	BodyWindowSize int
	// ErrorStatus is the CommandStatus value sent back when a handler
	// returns an error or panics, in lieu of an application-specific code.
	ErrorStatus int
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentHandlers: 64,
		BodyWindowSize:        65536,
		ErrorStatus:           500,
	}
}

// Handler processes one request message and its body, returning the
// response message to send back (the dispatcher overwrites its ID to
// match the request regardless of what the handler sets).
type Handler func(ctx context.Context, req *fbm.Message, body MessageBody) (*fbm.Message, error)

// Stats reports dispatcher-level counters for observability.
type Stats struct {
	ActiveRequests int64
	HandlerErrors  int64
	BodyRejections int64
}

// Dispatcher runs the server side of one FBM session over a single
// upgraded WebSocket connection.
type Dispatcher struct {
	cfg     Config
	bodies  *bodyWindowPool
	sem     chan struct{}
	writeMu sync.Mutex

	activeRequests atomic.Int64
	handlerErrors  atomic.Int64
	bodyRejections atomic.Int64
}

func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		bodies: newBodyWindowPool(cfg.BodyWindowSize),
		sem:    make(chan struct{}, cfg.MaxConcurrentHandlers),
	}
}

// Serve reads frames from conn until it errors (peer closed, protocol
// violation) or ctx is cancelled, dispatching each to handler. It
// blocks until every in-flight handler invocation has returned, so
// ctx cancellation drains cleanly rather than dropping responses.
func (d *Dispatcher) Serve(ctx context.Context, conn *wsconn.Conn, handler Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, _, err := fbm.Decode(payload)
		if err != nil {
			// Malformed frame: can't even recover a message id to
			// reply against, so the session has no well-formed way to
			// answer. Drop it and keep serving.
			continue
		}

		select {
		case d.sem <- struct{}{}:
		case <-sessionCtx.Done():
			return sessionCtx.Err()
		}

		wg.Add(1)
		go func(req *fbm.Message) {
			defer wg.Done()
			defer func() { <-d.sem }()
			d.handleFrame(sessionCtx, conn, req, handler)
		}(msg)

		if sessionCtx.Err() != nil {
			return sessionCtx.Err()
		}
	}
}

func (d *Dispatcher) handleFrame(ctx context.Context, conn *wsconn.Conn, req *fbm.Message, handler Handler) {
	d.activeRequests.Add(1)
	defer d.activeRequests.Add(-1)

	if len(req.Body) > d.cfg.BodyWindowSize {
		d.bodyRejections.Add(1)
		d.reply(conn, errorResponse(req.ID, d.cfg.ErrorStatus, ErrBodyTooLarge))
		return
	}

	window := d.bodies.get()
	n := copy(window, req.Body)
	contentType, _ := req.ContentType()
	body := &windowedBody{contentType: contentType, window: window, n: n, release: d.bodies.put}

	resp := d.invoke(ctx, req, body, handler)
	resp.ID = req.ID
	d.reply(conn, resp)
}

func (d *Dispatcher) invoke(ctx context.Context, req *fbm.Message, body MessageBody, handler Handler) (resp *fbm.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.handlerErrors.Add(1)
			resp = errorResponse(req.ID, d.cfg.ErrorStatus, ErrHandlerPanicked)
		}
		body.Close()
	}()

	out, err := handler(ctx, req, body)
	if err != nil {
		d.handlerErrors.Add(1)
		return errorResponse(req.ID, d.cfg.ErrorStatus, err)
	}
	if out == nil {
		out = &fbm.Message{}
	}
	return out
}

func (d *Dispatcher) reply(conn *wsconn.Conn, resp *fbm.Message) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	size := fbm.EncodedSize(resp)
	if cap(bb.B) < size {
		bb.B = make([]byte, size)
	} else {
		bb.B = bb.B[:size]
	}
	n, err := fbm.Encode(bb.B, resp)
	if err != nil {
		return
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_ = conn.WriteBinary(bb.B[:n])
}

func errorResponse(id uint32, status int, cause error) *fbm.Message {
	resp := &fbm.Message{ID: id}
	resp.SetStatus(status)
	if cause != nil {
		resp.AddHeader(fbm.CommandGenericHeader, cause.Error())
	}
	return resp
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		ActiveRequests: d.activeRequests.Load(),
		HandlerErrors:  d.handlerErrors.Load(),
		BodyRejections: d.bodyRejections.Load(),
	}
}
