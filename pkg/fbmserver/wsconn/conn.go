package wsconn

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"

	"github.com/yourusername/fbmserver/pkg/fbmserver/transport"
)

var ErrConnectionClosed = errors.New("wsconn: connection closed")

// Conn is one upgraded WebSocket connection. Masking direction follows
// RFC 6455 §5.1's rule ("a client MUST mask", "a server MUST NOT
// mask"), keyed off which side of the handshake this Conn is: a
// server-role Conn (the common case — NewConn) never masks what it
// writes and requires every frame it reads to be masked; a
// client-role Conn (NewClientConn) does the opposite. It reassembles
// fragmented messages into a single caller buffer, since FBM's own
// framing (a 4-byte length-prefixed command stream) always arrives as
// one logical message even if the transport splits it across
// WebSocket frames.
type Conn struct {
	stream   transport.Stream
	reader   *FrameReader
	writer   *FrameWriter
	isServer bool

	msgBuf []byte
	closed bool
}

// NewConn adapts stream (already past the HTTP upgrade handshake) into
// a server-role Conn. msgBuf is the fixed scratch area messages are
// reassembled into; a message larger than msgBuf makes ReadMessage
// fail with ErrFrameTooLarge (a frame does not fit the space left) or
// ErrMessageTooLarge (continuation frames have filled msgBuf).
func NewConn(stream transport.Stream, msgBuf []byte) *Conn {
	return &Conn{
		stream:   stream,
		reader:   NewFrameReader(stream),
		writer:   NewFrameWriter(stream),
		isServer: true,
		msgBuf:   msgBuf,
	}
}

// NewClientConn adapts stream into a client-role Conn: outgoing frames
// are masked with a fresh random key each write, and incoming frames
// are required to be unmasked (a masked frame from a server is a
// protocol violation, RFC 6455 §5.1).
func NewClientConn(stream transport.Stream, msgBuf []byte) *Conn {
	return &Conn{
		stream: stream,
		reader: NewFrameReader(stream),
		writer: NewFrameWriter(stream),
		msgBuf: msgBuf,
	}
}

// ReadMessage reads one complete data message (handling continuation
// frames and transparently answering Ping/Close control frames along
// the way), returning the opcode of the first frame (Text or Binary)
// and the slice of msgBuf holding the reassembled payload.
func (c *Conn) ReadMessage() (byte, []byte, error) {
	if c.closed {
		return 0, nil, ErrConnectionClosed
	}

	var msgOpcode byte
	total := 0

	for {
		frame, err := c.reader.ReadFrameInto(c.msgBuf[total:])
		if err != nil {
			return 0, nil, err
		}

		if c.isServer {
			if !frame.Masked && frame.Length > 0 {
				return 0, nil, ErrMaskRequired
			}
		} else if frame.Masked {
			return 0, nil, ErrMaskNotAllowed
		}

		if frame.IsControl() {
			if err := c.handleControlFrame(frame); err != nil {
				return 0, nil, err
			}
			if frame.Opcode == OpcodeClose {
				c.closed = true
				return 0, nil, io.EOF
			}
			continue
		}

		if frame.Opcode != OpcodeContinuation {
			msgOpcode = frame.Opcode
		}
		total += int(frame.Length)

		if frame.Fin {
			return msgOpcode, c.msgBuf[:total], nil
		}
		if total >= len(c.msgBuf) {
			return 0, nil, ErrMessageTooLarge
		}
	}
}

func (c *Conn) handleControlFrame(frame Frame) error {
	switch frame.Opcode {
	case OpcodePing:
		return c.writeControlFrame(OpcodePong, frame.Payload)
	case OpcodePong:
		return nil
	case OpcodeClose:
		return c.writeClose(CloseNormalClosure, "")
	default:
		return nil
	}
}

// maskKeyIfClient returns a freshly generated mask key when this Conn
// plays the client role (every frame a client writes must be masked,
// RFC 6455 §5.1), or nil when it plays the server role (server frames
// must never be masked).
func (c *Conn) maskKeyIfClient() *[4]byte {
	if c.isServer {
		return nil
	}
	var key [4]byte
	_, _ = rand.Read(key[:])
	return &key
}

func (c *Conn) writeControlFrame(opcode byte, payload []byte) error {
	if len(payload) > MaxControlFramePayload {
		return ErrInvalidControlFrame
	}
	return c.writer.WriteFrame(opcode, true, payload, c.maskKeyIfClient())
}

func (c *Conn) writeClose(code uint16, reason string) error {
	var payload []byte
	if code != 0 {
		payload = make([]byte, 2+len(reason))
		binary.BigEndian.PutUint16(payload, code)
		copy(payload[2:], reason)
	}
	return c.writeControlFrame(OpcodeClose, payload)
}

// WriteBinary sends one unfragmented binary message — FBM's wire
// format, which is already a complete self-delimited frame.
func (c *Conn) WriteBinary(data []byte) error {
	if c.closed {
		return ErrConnectionClosed
	}
	return c.writer.WriteFrame(OpcodeBinary, true, data, c.maskKeyIfClient())
}

// Close sends a Close control frame (if not already closed) and closes
// the underlying transport.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.writeClose(CloseNormalClosure, "")
	return c.stream.Close()
}
