package dispatch

import (
	"context"
	"sync"

	"github.com/yourusername/fbmserver/pkg/fbmserver/fbm"
	"github.com/yourusername/fbmserver/pkg/fbmserver/fbm/client"
	"github.com/yourusername/fbmserver/pkg/fbmserver/wsconn"
)

// Session multiplexes one upgraded WebSocket connection between the
// two FBM roles it can play at once: answering requests the peer
// sends in (via a Dispatcher) and, on the same connection, issuing its
// own requests to the peer and awaiting replies (via a Correlator) —
// the protocol itself doesn't say which side opened the connection
// has to be the only one that asks questions.
//
// Every inbound frame is decoded once and classified: if its id
// matches an outstanding Correlator.Send, it's a response; otherwise
// it's treated as a fresh request and dispatched to the handler.
type Session struct {
	conn       *wsconn.Conn
	dispatcher *Dispatcher
	correlator *client.Correlator
	handler    Handler
}

// NewSession builds a session over conn. handler may be nil if this
// side of the connection never expects inbound requests (pure client
// role); correlatorCfg governs outbound Call traffic.
func NewSession(conn *wsconn.Conn, dispatcher *Dispatcher, correlatorCfg client.Config, handler Handler) *Session {
	return &Session{
		conn:       conn,
		dispatcher: dispatcher,
		correlator: client.NewCorrelator(conn, correlatorCfg),
		handler:    handler,
	}
}

// Call sends req to the peer and waits for its response, exactly like
// client.Correlator.Send — Session just owns the correlator so the
// same connection's demultiplexing loop can feed it responses.
func (s *Session) Call(ctx context.Context, req *fbm.Message) (*fbm.Message, error) {
	return s.correlator.Send(ctx, req)
}

// Serve runs the demultiplexing read loop until the connection errors
// or ctx is cancelled, blocking until every in-flight handler
// invocation this session started has returned.
func (s *Session) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.correlator.Shutdown(err)
			return err
		}

		msg, _, err := fbm.Decode(payload)
		if err != nil {
			continue
		}

		if s.correlator.TryDeliver(msg) {
			continue
		}

		if s.handler == nil {
			continue
		}

		select {
		case s.dispatcher.sem <- struct{}{}:
		case <-sessionCtx.Done():
			return sessionCtx.Err()
		}

		wg.Add(1)
		go func(req *fbm.Message) {
			defer wg.Done()
			defer func() { <-s.dispatcher.sem }()
			s.dispatcher.handleFrame(sessionCtx, s.conn, req, s.handler)
		}(msg)

		if sessionCtx.Err() != nil {
			return sessionCtx.Err()
		}
	}
}

// Stats reports this session's outbound-call correlator stats.
func (s *Session) Stats() client.Stats {
	return s.correlator.Stats()
}
