package wsconn

import (
	"bytes"
	"testing"
)

func TestFrameWriteReadRoundTripUnmasked(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	if err := fw.WriteBinaryFrame([]byte("hello fbm")); err != nil {
		t.Fatalf("WriteBinaryFrame failed: %v", err)
	}

	fr := NewFrameReader(&buf)
	scratch := make([]byte, 64)
	frame, err := fr.ReadFrameInto(scratch)
	if err != nil {
		t.Fatalf("ReadFrameInto failed: %v", err)
	}
	if frame.Opcode != OpcodeBinary {
		t.Errorf("Opcode = %d, want OpcodeBinary", frame.Opcode)
	}
	if string(frame.Payload) != "hello fbm" {
		t.Errorf("Payload = %q, want %q", frame.Payload, "hello fbm")
	}
	if frame.Masked {
		t.Error("server frames must not be masked")
	}
}

func TestFrameWriteReadRoundTripMasked(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	key := [4]byte{0x11, 0x22, 0x33, 0x44}
	payload := []byte("client payload")
	if err := fw.WriteFrame(OpcodeText, true, payload, &key); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	fr := NewFrameReader(&buf)
	scratch := make([]byte, 64)
	frame, err := fr.ReadFrameInto(scratch)
	if err != nil {
		t.Fatalf("ReadFrameInto failed: %v", err)
	}
	if !frame.Masked {
		t.Fatal("expected masked frame")
	}
	if string(frame.Payload) != "client payload" {
		t.Errorf("Payload = %q, want %q", frame.Payload, "client payload")
	}
}

func TestFrameReadRejectsOversizedPayloadForBuffer(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	fw.WriteBinaryFrame(make([]byte, 100))

	fr := NewFrameReader(&buf)
	scratch := make([]byte, 10)
	_, err := fr.ReadFrameInto(scratch)
	if err != ErrFrameTooLarge {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestFrameControlFrameMustNotBeFragmented(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	fw.WriteFrame(OpcodePing, false, nil, nil)

	fr := NewFrameReader(&buf)
	scratch := make([]byte, 64)
	_, err := fr.ReadFrameInto(scratch)
	if err != ErrFragmentedControl {
		t.Fatalf("err = %v, want ErrFragmentedControl", err)
	}
}

func TestFrameControlFramePayloadTooLarge(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	err := fw.WriteControlFrame(OpcodePing, make([]byte, MaxControlFramePayload+1))
	if err != ErrInvalidControlFrame {
		t.Fatalf("err = %v, want ErrInvalidControlFrame", err)
	}
}

func TestComputeAcceptKeyMatchesRFCExample(t *testing.T) {
	// RFC 6455 §1.3 worked example.
	got := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Errorf("ComputeAcceptKey = %q, want %q", got, want)
	}
}
