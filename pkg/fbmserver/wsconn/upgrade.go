package wsconn

import (
	"errors"

	"github.com/yourusername/fbmserver/pkg/fbmserver/httpengine"
)

var (
	ErrNotWebSocket        = errors.New("wsconn: not a websocket handshake")
	ErrBadWebSocketKey     = errors.New("wsconn: missing or invalid Sec-WebSocket-Key")
	ErrBadWebSocketVersion = errors.New("wsconn: unsupported Sec-WebSocket-Version")
)

// Handshake holds what ValidateUpgrade extracted from a request, ready
// to build the 101 response.
type Handshake struct {
	AcceptKey string
}

// ValidateUpgrade checks req against RFC 6455 §4.2.1's opening
// handshake requirements (GET method, Connection: Upgrade, Upgrade:
// websocket, Sec-WebSocket-Version: 13, a present Sec-WebSocket-Key),
// and computes the accept key the 101 response must carry.
func ValidateUpgrade(req *httpengine.Request) (*Handshake, error) {
	if !req.IsGET() {
		return nil, ErrNotWebSocket
	}
	if !headerTokenContains(req.GetHeaderString("Connection"), "upgrade") {
		return nil, ErrNotWebSocket
	}
	if !headerTokenContains(req.GetHeaderString("Upgrade"), "websocket") {
		return nil, ErrNotWebSocket
	}
	if req.GetHeaderString("Sec-WebSocket-Version") != "13" {
		return nil, ErrBadWebSocketVersion
	}
	key := req.GetHeaderString("Sec-WebSocket-Key")
	if key == "" {
		return nil, ErrBadWebSocketKey
	}
	return &Handshake{AcceptKey: ComputeAcceptKey(key)}, nil
}

// UpgradeHeaders returns the extra response headers the connection
// engine's handleUpgrade path must add to the 101 response, beyond the
// Upgrade/Connection headers it already sets unconditionally.
func (h *Handshake) UpgradeHeaders() map[string]string {
	return map[string]string{
		"Sec-WebSocket-Accept": h.AcceptKey,
	}
}

func headerTokenContains(headerValue, token string) bool {
	start := 0
	for i := 0; i <= len(headerValue); i++ {
		if i == len(headerValue) || headerValue[i] == ',' {
			part := trimSpaceASCII(headerValue[start:i])
			if equalFold(part, token) {
				return true
			}
			start = i + 1
		}
	}
	return false
}

func trimSpaceASCII(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 32
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 32
		}
		if ca != cb {
			return false
		}
	}
	return true
}
