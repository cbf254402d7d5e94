package wsconn

import (
	"encoding/binary"
	"io"
)

// FrameReader parses WebSocket frames off an io.Reader, writing each
// frame's payload into a caller-supplied fixed buffer rather than
// growing its own — grounded on
// shockwave/pkg/shockwave/websocket/frame.go's ReadFrameInto variant,
// promoted here to the only read path so FBM message bodies never
// force an allocation per frame.
type FrameReader struct {
	r         io.Reader
	headerBuf [MaxFrameHeaderSize]byte
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrameInto reads one frame's header and payload, writing the
// payload into buf. Returns ErrFrameTooLarge if the frame's declared
// length exceeds len(buf) — the caller owns the decision of how to
// respond (close the connection, or grow into a larger scratch area
// for this one oversized message).
func (fr *FrameReader) ReadFrameInto(buf []byte) (Frame, error) {
	var frame Frame

	if _, err := io.ReadFull(fr.r, fr.headerBuf[:2]); err != nil {
		return frame, err
	}

	b0 := fr.headerBuf[0]
	frame.Fin = b0&finalBit != 0
	frame.RSV1 = b0&rsv1Bit != 0
	frame.RSV2 = b0&rsv2Bit != 0
	frame.RSV3 = b0&rsv3Bit != 0
	frame.Opcode = b0 & opcodeMask

	b1 := fr.headerBuf[1]
	frame.Masked = b1&maskBit != 0
	payloadLen := uint64(b1 & lengthMask)

	if frame.Opcode > 0xA || (frame.Opcode > 0x2 && frame.Opcode < 0x8) {
		return frame, ErrInvalidOpcode
	}
	if frame.IsControl() {
		if !frame.Fin {
			return frame, ErrFragmentedControl
		}
		if payloadLen > MaxControlFramePayload {
			return frame, ErrInvalidControlFrame
		}
	}
	if frame.RSV1 || frame.RSV2 || frame.RSV3 {
		return frame, ErrReservedBitsSet
	}

	headerSize := 2
	switch payloadLen {
	case 126:
		if _, err := io.ReadFull(fr.r, fr.headerBuf[2:4]); err != nil {
			return frame, err
		}
		frame.Length = uint64(binary.BigEndian.Uint16(fr.headerBuf[2:4]))
		headerSize = 4
	case 127:
		if _, err := io.ReadFull(fr.r, fr.headerBuf[2:10]); err != nil {
			return frame, err
		}
		frame.Length = binary.BigEndian.Uint64(fr.headerBuf[2:10])
		headerSize = 10
		if frame.Length&(1<<63) != 0 {
			return frame, ErrFrameTooLarge
		}
	default:
		frame.Length = payloadLen
	}

	if frame.Masked {
		if _, err := io.ReadFull(fr.r, fr.headerBuf[headerSize:headerSize+4]); err != nil {
			return frame, err
		}
		copy(frame.MaskKey[:], fr.headerBuf[headerSize:headerSize+4])
	}

	if frame.Length == 0 {
		return frame, nil
	}
	if uint64(len(buf)) < frame.Length {
		return frame, ErrFrameTooLarge
	}

	payload := buf[:frame.Length]
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return frame, err
	}
	if frame.Masked {
		maskBytes(payload, frame.MaskKey)
	}
	frame.Payload = payload
	return frame, nil
}

// FrameWriter frames and writes WebSocket messages, reusing a fixed
// header scratch buffer across calls.
type FrameWriter struct {
	w         io.Writer
	headerBuf [MaxFrameHeaderSize]byte
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one frame. If maskKey is non-nil, payload is
// masked in place before writing (server frames must never be masked
// per RFC 6455 §5.1; callers on the server side pass nil).
func (fw *FrameWriter) WriteFrame(opcode byte, fin bool, payload []byte, maskKey *[4]byte) error {
	b0 := opcode
	if fin {
		b0 |= finalBit
	}
	fw.headerBuf[0] = b0

	payloadLen := uint64(len(payload))
	headerSize := 2
	b1 := byte(0)
	if maskKey != nil {
		b1 |= maskBit
	}

	switch {
	case payloadLen <= 125:
		fw.headerBuf[1] = b1 | byte(payloadLen)
	case payloadLen <= 0xFFFF:
		fw.headerBuf[1] = b1 | 126
		binary.BigEndian.PutUint16(fw.headerBuf[2:4], uint16(payloadLen))
		headerSize = 4
	default:
		fw.headerBuf[1] = b1 | 127
		binary.BigEndian.PutUint64(fw.headerBuf[2:10], payloadLen)
		headerSize = 10
	}

	if maskKey != nil {
		copy(fw.headerBuf[headerSize:headerSize+4], maskKey[:])
		headerSize += 4
	}

	if _, err := fw.w.Write(fw.headerBuf[:headerSize]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	if maskKey != nil {
		maskBytes(payload, *maskKey)
	}
	_, err := fw.w.Write(payload)
	return err
}

func (fw *FrameWriter) WriteControlFrame(opcode byte, payload []byte) error {
	if len(payload) > MaxControlFramePayload {
		return ErrInvalidControlFrame
	}
	if opcode < OpcodeClose || opcode > OpcodePong {
		return ErrInvalidOpcode
	}
	return fw.WriteFrame(opcode, true, payload, nil)
}

func (fw *FrameWriter) WriteBinaryFrame(data []byte) error {
	return fw.WriteFrame(OpcodeBinary, true, data, nil)
}

func (fw *FrameWriter) WriteTextFrame(data []byte) error {
	return fw.WriteFrame(OpcodeText, true, data, nil)
}

func (fw *FrameWriter) WritePing(payload []byte) error { return fw.WriteControlFrame(OpcodePing, payload) }
func (fw *FrameWriter) WritePong(payload []byte) error { return fw.WriteControlFrame(OpcodePong, payload) }

func (fw *FrameWriter) WriteClose(code uint16, reason string) error {
	var payload []byte
	if code != 0 {
		payload = make([]byte, 2+len(reason))
		binary.BigEndian.PutUint16(payload, code)
		copy(payload[2:], reason)
	}
	return fw.WriteControlFrame(OpcodeClose, payload)
}
