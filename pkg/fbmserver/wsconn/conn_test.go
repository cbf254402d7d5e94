package wsconn

import (
	"net"
	"testing"
	"time"

	"github.com/yourusername/fbmserver/pkg/fbmserver/transport"
)

func TestConnReadMessageReassemblesFragments(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	serverConn := NewConn(transport.NewTCPStream(server, false), make([]byte, 256))

	go func() {
		fw := NewFrameWriter(client)
		key := [4]byte{1, 2, 3, 4}
		fw.WriteFrame(OpcodeBinary, false, []byte("part1-"), &key)
		fw.WriteFrame(OpcodeContinuation, true, []byte("part2"), &key)
	}()

	done := make(chan struct{})
	var opcode byte
	var payload string
	go func() {
		defer close(done)
		op, data, err := serverConn.ReadMessage()
		if err != nil {
			t.Errorf("ReadMessage failed: %v", err)
			return
		}
		opcode = op
		payload = string(data)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReadMessage did not complete")
	}

	if opcode != OpcodeBinary {
		t.Errorf("opcode = %d, want OpcodeBinary", opcode)
	}
	if payload != "part1-part2" {
		t.Errorf("payload = %q, want %q", payload, "part1-part2")
	}
}

func TestConnWriteBinaryIsUnmasked(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	serverConn := NewConn(transport.NewTCPStream(server, false), make([]byte, 256))

	done := make(chan struct{})
	go func() {
		defer close(done)
		serverConn.WriteBinary([]byte("hello"))
	}()

	fr := NewFrameReader(client)
	scratch := make([]byte, 64)
	frame, err := fr.ReadFrameInto(scratch)
	if err != nil {
		t.Fatalf("ReadFrameInto failed: %v", err)
	}
	if frame.Masked {
		t.Error("server-originated frames must not be masked")
	}
	if string(frame.Payload) != "hello" {
		t.Errorf("Payload = %q, want hello", frame.Payload)
	}
	<-done
}

func TestClientConnWriteBinaryIsMasked(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	clientConn := NewClientConn(transport.NewTCPStream(client, false), make([]byte, 256))

	done := make(chan struct{})
	go func() {
		defer close(done)
		clientConn.WriteBinary([]byte("hello"))
	}()

	fr := NewFrameReader(server)
	scratch := make([]byte, 64)
	frame, err := fr.ReadFrameInto(scratch)
	if err != nil {
		t.Fatalf("ReadFrameInto failed: %v", err)
	}
	if !frame.Masked {
		t.Error("client-originated frames must be masked")
	}
	if string(frame.Payload) != "hello" {
		t.Errorf("Payload = %q, want hello", frame.Payload)
	}
	<-done
}

func TestConnReadMessageRejectsUnmaskedFromClientRole(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })

	serverConn := NewConn(transport.NewTCPStream(a, false), make([]byte, 256))

	go func() {
		fw := NewFrameWriter(b)
		fw.WriteFrame(OpcodeBinary, true, []byte("unmasked"), nil)
	}()

	_, _, err := serverConn.ReadMessage()
	if err != ErrMaskRequired {
		t.Fatalf("err = %v, want ErrMaskRequired", err)
	}
}

func TestClientConnReadMessageRejectsMaskedFromServerRole(t *testing.T) {
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })

	clientConn := NewClientConn(transport.NewTCPStream(a, false), make([]byte, 256))

	go func() {
		fw := NewFrameWriter(b)
		key := [4]byte{9, 8, 7, 6}
		fw.WriteFrame(OpcodeBinary, true, []byte("masked"), &key)
	}()

	_, _, err := clientConn.ReadMessage()
	if err != ErrMaskNotAllowed {
		t.Fatalf("err = %v, want ErrMaskNotAllowed", err)
	}
}
