package wsconn

import (
	"testing"

	"github.com/yourusername/fbmserver/pkg/fbmserver/httpengine"
)

func newUpgradeRequest(t *testing.T, overrides map[string]string) *httpengine.Request {
	t.Helper()
	req := &httpengine.Request{MethodID: httpengine.MethodGET}
	headers := map[string]string{
		"Connection":            "Upgrade",
		"Upgrade":               "websocket",
		"Sec-WebSocket-Version": "13",
		"Sec-WebSocket-Key":     "dGhlIHNhbXBsZSBub25jZQ==",
	}
	for k, v := range overrides {
		headers[k] = v
	}
	for k, v := range headers {
		req.Header.Add([]byte(k), []byte(v))
	}
	return req
}

func TestValidateUpgradeAccepts(t *testing.T) {
	req := newUpgradeRequest(t, nil)
	hs, err := ValidateUpgrade(req)
	if err != nil {
		t.Fatalf("ValidateUpgrade failed: %v", err)
	}
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if hs.AcceptKey != want {
		t.Errorf("AcceptKey = %q, want %q", hs.AcceptKey, want)
	}
}

func TestValidateUpgradeRejectsWrongMethod(t *testing.T) {
	req := newUpgradeRequest(t, nil)
	req.MethodID = httpengine.MethodPOST
	_, err := ValidateUpgrade(req)
	if err != ErrNotWebSocket {
		t.Fatalf("err = %v, want ErrNotWebSocket", err)
	}
}

func TestValidateUpgradeRejectsMissingUpgradeHeader(t *testing.T) {
	req := &httpengine.Request{MethodID: httpengine.MethodGET}
	req.Header.Add([]byte("Connection"), []byte("Upgrade"))
	req.Header.Add([]byte("Sec-WebSocket-Version"), []byte("13"))
	req.Header.Add([]byte("Sec-WebSocket-Key"), []byte("dGhlIHNhbXBsZSBub25jZQ=="))
	_, err := ValidateUpgrade(req)
	if err != ErrNotWebSocket {
		t.Fatalf("err = %v, want ErrNotWebSocket", err)
	}
}

func TestValidateUpgradeRejectsBadVersion(t *testing.T) {
	req := newUpgradeRequest(t, map[string]string{"Sec-WebSocket-Version": "8"})
	_, err := ValidateUpgrade(req)
	if err != ErrBadWebSocketVersion {
		t.Fatalf("err = %v, want ErrBadWebSocketVersion", err)
	}
}

func TestValidateUpgradeRejectsMissingKey(t *testing.T) {
	req := &httpengine.Request{MethodID: httpengine.MethodGET}
	req.Header.Add([]byte("Connection"), []byte("Upgrade"))
	req.Header.Add([]byte("Upgrade"), []byte("websocket"))
	req.Header.Add([]byte("Sec-WebSocket-Version"), []byte("13"))
	_, err := ValidateUpgrade(req)
	if err != ErrBadWebSocketKey {
		t.Fatalf("err = %v, want ErrBadWebSocketKey", err)
	}
}

func TestHandshakeUpgradeHeaders(t *testing.T) {
	req := newUpgradeRequest(t, nil)
	hs, err := ValidateUpgrade(req)
	if err != nil {
		t.Fatalf("ValidateUpgrade failed: %v", err)
	}
	headers := hs.UpgradeHeaders()
	if headers["Sec-WebSocket-Accept"] != hs.AcceptKey {
		t.Error("expected Sec-WebSocket-Accept header to carry the computed accept key")
	}
}
