package httpengine

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/fbmserver/pkg/fbmserver/buffer"
	"github.com/yourusername/fbmserver/pkg/fbmserver/transport"
)

func newTestConnection(t *testing.T, handler Handler) (*Connection, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })

	pool := buffer.NewPool(buffer.DefaultConfig(), 0)
	stream := transport.NewTCPStream(server, false)
	cfg := DefaultConfig()
	cfg.KeepAliveTimeout = 0

	conn, err := NewConnection(stream, pool, cfg, handler)
	if err != nil {
		t.Fatalf("NewConnection failed: %v", err)
	}
	return conn, client
}

func echoPathHandler(req *Request, rw *ResponseWriter, cancel <-chan struct{}) Outcome {
	rw.WriteText(200, []byte(req.Path()))
	return Outcome{Kind: Completed}
}

func TestConnectionServesSingleRequestThenKeepAliveCloses(t *testing.T) {
	conn, client := newTestConnection(t, echoPathHandler)

	done := make(chan error, 1)
	go func() { done <- conn.Serve() }()

	client.Write([]byte("GET /hello HTTP/1.1\r\nConnection: close\r\n\r\n"))

	resp, err := readHTTPResponse(client)
	if err != nil {
		t.Fatalf("reading response failed: %v", err)
	}
	if !strings.Contains(resp, "HTTP/1.1 200 OK") {
		t.Fatalf("unexpected response: %q", resp)
	}
	if !strings.HasSuffix(resp, "/hello") {
		t.Fatalf("expected echoed path in body, got %q", resp)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Connection: close")
	}
}

func TestConnectionKeepAliveServesMultipleRequests(t *testing.T) {
	conn, client := newTestConnection(t, echoPathHandler)

	done := make(chan error, 1)
	go func() { done <- conn.Serve() }()

	client.Write([]byte("GET /one HTTP/1.1\r\n\r\n"))
	resp1, err := readHTTPResponse(client)
	if err != nil {
		t.Fatalf("first response failed: %v", err)
	}
	if !strings.HasSuffix(resp1, "/one") {
		t.Fatalf("expected /one in body, got %q", resp1)
	}

	client.Write([]byte("GET /two HTTP/1.1\r\nConnection: close\r\n\r\n"))
	resp2, err := readHTTPResponse(client)
	if err != nil {
		t.Fatalf("second response failed: %v", err)
	}
	if !strings.HasSuffix(resp2, "/two") {
		t.Fatalf("expected /two in body, got %q", resp2)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after second Connection: close")
	}

	if conn.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2", conn.RequestCount())
	}
}

func TestConnectionMaxRequestsForcesClose(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })

	pool := buffer.NewPool(buffer.DefaultConfig(), 0)
	stream := transport.NewTCPStream(server, false)
	cfg := DefaultConfig()
	cfg.KeepAliveTimeout = 0
	cfg.MaxRequests = 1

	conn, err := NewConnection(stream, pool, cfg, echoPathHandler)
	if err != nil {
		t.Fatalf("NewConnection failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- conn.Serve() }()

	client.Write([]byte("GET /only HTTP/1.1\r\n\r\n"))
	resp, err := readHTTPResponse(client)
	if err != nil {
		t.Fatalf("reading response failed: %v", err)
	}
	if !strings.Contains(resp, "Connection: close") {
		t.Errorf("expected Connection: close header once MaxRequests reached, got %q", resp)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not close after MaxRequests was reached")
	}
}

// readHTTPResponse reads one full HTTP response (status line, headers,
// body) off conn, using Content-Length to know when the body ends.
func readHTTPResponse(conn net.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)

	var sb strings.Builder
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(line)
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			var n int
			fieldVal := strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			for _, c := range fieldVal {
				if c < '0' || c > '9' {
					break
				}
				n = n*10 + int(c-'0')
			}
			contentLength = n
		}
		if line == "\r\n" {
			break
		}
	}
	if contentLength > 0 {
		body := make([]byte, contentLength)
		if _, err := io.ReadFull(r, body); err != nil {
			return sb.String(), err
		}
		sb.Write(body)
	}
	return sb.String(), nil
}
