package httpengine

import (
	"strings"
	"testing"
)

func parseInto(t *testing.T, input string) (*Request, *Parser) {
	t.Helper()
	buf := make([]byte, 4096)
	req := &Request{}
	p := NewParser()
	if err := p.Parse(strings.NewReader(input), req, buf); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return req, p
}

func TestParseSimpleGET(t *testing.T) {
	req, _ := parseInto(t, "GET / HTTP/1.1\r\n\r\n")
	if req.MethodID != MethodGET {
		t.Errorf("MethodID = %d, want %d", req.MethodID, MethodGET)
	}
	if req.Path() != "/" {
		t.Errorf("Path = %q, want %q", req.Path(), "/")
	}
	if req.Proto != "HTTP/1.1" {
		t.Errorf("Proto = %q, want %q", req.Proto, "HTTP/1.1")
	}
}

func TestParseGETWithQuery(t *testing.T) {
	req, _ := parseInto(t, "GET /search?q=test&limit=10 HTTP/1.1\r\n\r\n")
	if req.Path() != "/search" {
		t.Errorf("Path = %q, want %q", req.Path(), "/search")
	}
	if req.Query() != "q=test&limit=10" {
		t.Errorf("Query = %q, want %q", req.Query(), "q=test&limit=10")
	}
}

func TestParseHeaders(t *testing.T) {
	input := "GET / HTTP/1.1\r\nHost: example.com\r\nX-Custom: value\r\n\r\n"
	req, _ := parseInto(t, input)
	if got := req.GetHeaderString("Host"); got != "example.com" {
		t.Errorf("Host = %q, want %q", got, "example.com")
	}
	if got := req.GetHeaderString("X-Custom"); got != "value" {
		t.Errorf("X-Custom = %q, want %q", got, "value")
	}
}

func TestParseHeaderNameIsCaseInsensitive(t *testing.T) {
	req, _ := parseInto(t, "GET / HTTP/1.1\r\nCONTENT-length: 0\r\n\r\n")
	if !req.HasHeader([]byte("Content-Length")) {
		t.Error("expected Content-Length to be found case-insensitively")
	}
}

func TestParseHTTP10DefaultsToClose(t *testing.T) {
	req, _ := parseInto(t, "GET / HTTP/1.0\r\n\r\n")
	if !req.Close {
		t.Error("HTTP/1.0 without Connection: keep-alive should close")
	}
}

func TestParseHTTP10KeepAliveStaysOpen(t *testing.T) {
	req, _ := parseInto(t, "GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
	if req.Close {
		t.Error("HTTP/1.0 with Connection: keep-alive should not close")
	}
}

func TestParseHTTP11ConnectionCloseHonored(t *testing.T) {
	req, _ := parseInto(t, "GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	if !req.Close {
		t.Error("Connection: close should set req.Close")
	}
}

func TestParseRejectsContentLengthWithTransferEncoding(t *testing.T) {
	input := "POST / HTTP/1.1\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\nhello"
	buf := make([]byte, 4096)
	req := &Request{}
	p := NewParser()
	err := p.Parse(strings.NewReader(input), req, buf)
	if err != ErrContentLengthWithTransferEncoding {
		t.Fatalf("err = %v, want ErrContentLengthWithTransferEncoding", err)
	}
}

func TestParseRejectsMismatchedDuplicateContentLength(t *testing.T) {
	input := "POST / HTTP/1.1\r\nContent-Length: 5\r\nContent-Length: 6\r\n\r\nhello!"
	buf := make([]byte, 4096)
	req := &Request{}
	p := NewParser()
	err := p.Parse(strings.NewReader(input), req, buf)
	if err != ErrDuplicateContentLength {
		t.Fatalf("err = %v, want ErrDuplicateContentLength", err)
	}
}

func TestParseAllowsIdenticalDuplicateContentLength(t *testing.T) {
	input := "POST / HTTP/1.1\r\nContent-Length: 5\r\nContent-Length: 5\r\n\r\nhello"
	req, _ := parseInto(t, input)
	if req.ContentLength != 5 {
		t.Errorf("ContentLength = %d, want 5", req.ContentLength)
	}
}

func TestParseRejectsUnknownMethod(t *testing.T) {
	buf := make([]byte, 4096)
	req := &Request{}
	p := NewParser()
	err := p.Parse(strings.NewReader("FROBNICATE / HTTP/1.1\r\n\r\n"), req, buf)
	if err != ErrInvalidMethod {
		t.Fatalf("err = %v, want ErrInvalidMethod", err)
	}
}

func TestParseHeadersTooLargeWhenBufferExhausted(t *testing.T) {
	buf := make([]byte, 16)
	req := &Request{}
	p := NewParser()
	err := p.Parse(strings.NewReader("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"), req, buf)
	if err != ErrHeadersTooLarge {
		t.Fatalf("err = %v, want ErrHeadersTooLarge", err)
	}
}

func TestParsePipeliningLeavesUnreadForNextRequest(t *testing.T) {
	input := "GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"
	buf := make([]byte, 4096)
	req := &Request{}
	p := NewParser()
	if err := p.Parse(strings.NewReader(input), req, buf); err != nil {
		t.Fatalf("first Parse failed: %v", err)
	}
	if req.Path() != "/a" {
		t.Fatalf("first request Path = %q, want /a", req.Path())
	}
	if len(p.unread) == 0 {
		t.Fatal("expected leftover pipelined bytes in p.unread")
	}

	req2 := &Request{}
	if err := p.Parse(strings.NewReader(""), req2, buf); err != nil {
		t.Fatalf("second Parse failed: %v", err)
	}
	if req2.Path() != "/b" {
		t.Fatalf("second request Path = %q, want /b", req2.Path())
	}
}

func TestSetupBodyReaderWithContentLength(t *testing.T) {
	input := "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	buf := make([]byte, 4096)
	req := &Request{}
	p := NewParser()
	r := strings.NewReader(input)
	if err := p.Parse(r, req, buf); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := p.SetupBodyReader(req, r); err != nil {
		t.Fatalf("SetupBodyReader failed: %v", err)
	}
	body := make([]byte, 16)
	n, _ := req.Body.Read(body)
	if string(body[:n]) != "hello" {
		t.Errorf("body = %q, want %q", body[:n], "hello")
	}
}
