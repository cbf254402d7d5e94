package dispatch

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/yourusername/fbmserver/pkg/fbmserver/fbm"
	"github.com/yourusername/fbmserver/pkg/fbmserver/transport"
	"github.com/yourusername/fbmserver/pkg/fbmserver/wsconn"
)

func newConnPair(t *testing.T) (*wsconn.Conn, *wsconn.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return wsconn.NewClientConn(transport.NewTCPStream(a, false), make([]byte, 8192)),
		wsconn.NewConn(transport.NewTCPStream(b, false), make([]byte, 8192))
}

func readAll(body MessageBody) []byte {
	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := body.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			return out
		}
	}
}

func TestDispatcherEchoesBody(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	d := NewDispatcher(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, serverConn, func(ctx context.Context, req *fbm.Message, body MessageBody) (*fbm.Message, error) {
		data := readAll(body)
		resp := &fbm.Message{}
		resp.Body = append([]byte(nil), data...)
		return resp, nil
	})

	req := &fbm.Message{ID: 5, Body: []byte("round trip me")}
	buf := make([]byte, fbm.EncodedSize(req))
	n, _ := fbm.Encode(buf, req)
	if err := clientConn.WriteBinary(buf[:n]); err != nil {
		t.Fatalf("WriteBinary failed: %v", err)
	}

	_, payload, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	resp, _, err := fbm.Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if resp.ID != 5 {
		t.Errorf("ID = %d, want 5", resp.ID)
	}
	if string(resp.Body) != "round trip me" {
		t.Errorf("Body = %q, want %q", resp.Body, "round trip me")
	}
}

func TestDispatcherHandlerErrorSetsStatus(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	d := NewDispatcher(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, serverConn, func(ctx context.Context, req *fbm.Message, body MessageBody) (*fbm.Message, error) {
		return nil, errors.New("boom")
	})

	req := &fbm.Message{ID: 9}
	buf := make([]byte, fbm.EncodedSize(req))
	n, _ := fbm.Encode(buf, req)
	clientConn.WriteBinary(buf[:n])

	_, payload, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	resp, _, err := fbm.Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	code, ok := resp.Status()
	if !ok || code != 500 {
		t.Errorf("Status = %d, %v, want 500, true", code, ok)
	}
}

func TestDispatcherHandlerPanicRecovered(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	d := NewDispatcher(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, serverConn, func(ctx context.Context, req *fbm.Message, body MessageBody) (*fbm.Message, error) {
		panic("handler exploded")
	})

	req := &fbm.Message{ID: 3}
	buf := make([]byte, fbm.EncodedSize(req))
	n, _ := fbm.Encode(buf, req)
	clientConn.WriteBinary(buf[:n])

	_, payload, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	resp, _, err := fbm.Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if code, ok := resp.Status(); !ok || code != 500 {
		t.Errorf("Status = %d, %v, want 500, true", code, ok)
	}

	stats := d.Stats()
	if stats.HandlerErrors != 1 {
		t.Errorf("HandlerErrors = %d, want 1", stats.HandlerErrors)
	}
}

func TestDispatcherRejectsOversizedBody(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	cfg := DefaultConfig()
	cfg.BodyWindowSize = 4
	d := NewDispatcher(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, serverConn, func(ctx context.Context, req *fbm.Message, body MessageBody) (*fbm.Message, error) {
		t.Error("handler should not run for an oversized body")
		return &fbm.Message{}, nil
	})

	req := &fbm.Message{ID: 1, Body: []byte("this body is too big for the window")}
	buf := make([]byte, fbm.EncodedSize(req))
	n, _ := fbm.Encode(buf, req)
	clientConn.WriteBinary(buf[:n])

	_, payload, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	resp, _, err := fbm.Decode(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if code, _ := resp.Status(); code != cfg.ErrorStatus {
		t.Errorf("Status = %d, want %d", code, cfg.ErrorStatus)
	}
	if d.Stats().BodyRejections != 1 {
		t.Errorf("BodyRejections = %d, want 1", d.Stats().BodyRejections)
	}
}

func TestDispatcherRunsHandlersConcurrently(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	d := NewDispatcher(DefaultConfig())

	const n = 5
	release := make(chan struct{})
	entered := make(chan struct{}, n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Serve(ctx, serverConn, func(ctx context.Context, req *fbm.Message, body MessageBody) (*fbm.Message, error) {
		entered <- struct{}{}
		<-release
		return &fbm.Message{}, nil
	})

	for i := 0; i < n; i++ {
		req := &fbm.Message{ID: uint32(i + 1)}
		buf := make([]byte, fbm.EncodedSize(req))
		wn, _ := fbm.Encode(buf, req)
		if err := clientConn.WriteBinary(buf[:wn]); err != nil {
			t.Fatalf("WriteBinary failed: %v", err)
		}
	}

	for i := 0; i < n; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d/%d handlers entered concurrently", i, n)
		}
	}
	close(release)

	for i := 0; i < n; i++ {
		if _, _, err := clientConn.ReadMessage(); err != nil && err != io.EOF {
			t.Fatalf("ReadMessage failed: %v", err)
		}
	}
}
