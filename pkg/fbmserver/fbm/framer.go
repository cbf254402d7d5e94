package fbm

import "encoding/binary"

// sentinel terminates every header value and, a second time back to
// back, the whole header block.
var sentinel = [2]byte{0xFF, 0xF1}

// idCommand is the command byte leading every frame's message id. The
// conformance vector for id=2 is `01 00 00 00 02 FF F1 ...` — the id is
// carried as a header-shaped region (command byte, big-endian value,
// sentinel) rather than a bare little-endian word, and happens to reuse
// the same command byte §4.7 reserves for an application status/
// response-code header; the two never collide since the id region is
// always the first 7 bytes of a frame, read before the header loop
// starts, not a member of Headers.
const idCommand = CommandStatus

// EncodedSize returns the number of bytes Encode needs to write msg:
// the id region (command byte + 4-byte big-endian id + sentinel), each
// header's command byte + value + sentinel, one more sentinel for the
// header block terminator, then the body verbatim.
func EncodedSize(msg *Message) int {
	n := 1 + 4 + 2
	for _, h := range msg.Headers {
		n += 1 + len(h.Value) + 2
	}
	n += 2 + len(msg.Body)
	return n
}

// Encode serializes msg into buf per §4.7's wire format, returning the
// number of bytes written. buf must be at least EncodedSize(msg) long;
// otherwise Encode returns a HeaderParseError carrying BufferTooSmall
// (parsing and serialization share one diagnostic vocabulary since both
// fail the same way a caller's fixed buffer can be undersized).
func Encode(buf []byte, msg *Message) (int, error) {
	need := EncodedSize(msg)
	if len(buf) < need {
		return 0, &HeaderParseError{Diagnostic: BufferTooSmall, Offset: 0}
	}

	pos := 0
	buf[pos] = idCommand
	pos++
	binary.BigEndian.PutUint32(buf[pos:], msg.ID)
	pos += 4
	buf[pos], buf[pos+1] = sentinel[0], sentinel[1]
	pos += 2

	for _, h := range msg.Headers {
		buf[pos] = h.Command
		pos++
		pos += copy(buf[pos:], h.Value)
		buf[pos], buf[pos+1] = sentinel[0], sentinel[1]
		pos += 2
	}
	buf[pos], buf[pos+1] = sentinel[0], sentinel[1]
	pos += 2

	pos += copy(buf[pos:], msg.Body)
	return pos, nil
}

// Decode parses one frame out of buf, returning the message and the
// number of bytes consumed. The body is the remainder of buf past the
// header block terminator — callers that read frames off a stream
// rather than a fully-buffered slice should size buf to the frame's
// known length (FBM frames are carried inside self-delimited WebSocket
// messages, so the caller always knows where one frame ends).
func Decode(buf []byte) (*Message, int, error) {
	if len(buf) < 7 {
		return nil, 0, &HeaderParseError{Diagnostic: BufferTooSmall, Offset: 0}
	}
	if buf[0] != idCommand {
		return nil, 0, &HeaderParseError{Diagnostic: InvalidHeaderRead, Offset: 0}
	}
	if buf[5] != sentinel[0] || buf[6] != sentinel[1] {
		return nil, 5, &HeaderParseError{Diagnostic: MissingTerminator, Offset: 5}
	}

	msg := &Message{ID: binary.BigEndian.Uint32(buf[1:5])}
	pos := 7

	for {
		if pos+2 > len(buf) {
			return nil, pos, &HeaderParseError{Diagnostic: MissingTerminator, Offset: pos}
		}
		if buf[pos] == sentinel[0] && buf[pos+1] == sentinel[1] {
			pos += 2
			break
		}

		if pos+1 > len(buf) {
			return nil, pos, &HeaderParseError{Diagnostic: InvalidHeaderRead, Offset: pos}
		}
		command := buf[pos]
		valueStart := pos + 1

		idx := indexSentinel(buf, valueStart)
		if idx < 0 {
			return nil, valueStart, &HeaderParseError{Diagnostic: MissingTerminator, Offset: valueStart}
		}

		msg.Headers = append(msg.Headers, Header{Command: command, Value: buf[valueStart:idx]})
		pos = idx + 2
	}

	msg.Body = buf[pos:]
	return msg, len(buf), nil
}

// ValidateCommands checks that every header command in msg is either a
// reserved command or accepted by isKnown, returning a HeaderParseError
// with UnknownCommand set otherwise; its Offset then holds the index of
// the offending entry in msg.Headers. Decode itself accepts any command
// byte, since a generic dispatcher can't know a session's
// application-defined commands in advance; a caller with a command
// table calls this after Decode to enforce it.
func ValidateCommands(msg *Message, isKnown func(command byte) bool) error {
	for i, h := range msg.Headers {
		switch h.Command {
		case CommandStatus, CommandContentType, CommandGenericHeader:
			continue
		}
		if isKnown != nil && isKnown(h.Command) {
			continue
		}
		return &HeaderParseError{Diagnostic: UnknownCommand, Offset: i}
	}
	return nil
}

// indexSentinel returns the offset of the first occurrence of the
// sentinel pair at or after start, or -1 if absent.
func indexSentinel(buf []byte, start int) int {
	for i := start; i+1 < len(buf); i++ {
		if buf[i] == sentinel[0] && buf[i+1] == sentinel[1] {
			return i
		}
	}
	return -1
}
