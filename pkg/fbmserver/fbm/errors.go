package fbm

import "fmt"

// ParseDiagnostic is a bit-set of everything that went wrong while
// parsing a frame. More than one bit may be set when a single
// malformed byte sequence trips multiple checks.
type ParseDiagnostic uint32

const (
	// InvalidHeaderRead means a header's command byte or value bytes
	// could not be read (short buffer, or a structurally invalid value).
	InvalidHeaderRead ParseDiagnostic = 1 << iota
	// MissingTerminator means a header value (or the header block
	// itself) was not followed by the 0xFF 0xF1 sentinel.
	MissingTerminator
	// BufferTooSmall means the frame's declared length, or a header
	// value within it, runs past the end of the supplied buffer.
	BufferTooSmall
	// UnknownCommand means a header command byte is not a reserved
	// command and the caller has not registered it as application-defined.
	UnknownCommand
)

func (d ParseDiagnostic) String() string {
	if d == 0 {
		return "none"
	}
	names := []struct {
		bit  ParseDiagnostic
		name string
	}{
		{InvalidHeaderRead, "InvalidHeaderRead"},
		{MissingTerminator, "MissingTerminator"},
		{BufferTooSmall, "BufferTooSmall"},
		{UnknownCommand, "UnknownCommand"},
	}
	s := ""
	for _, n := range names {
		if d&n.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}

func (d ParseDiagnostic) Has(bit ParseDiagnostic) bool { return d&bit != 0 }

// HeaderParseError reports a malformed frame, with the diagnostic bits
// describing what specifically was wrong. Offset is the byte offset
// where parsing gave up, except for errors from ValidateCommands, where
// it is the index of the rejected header.
type HeaderParseError struct {
	Diagnostic ParseDiagnostic
	Offset     int
}

func (e *HeaderParseError) Error() string {
	return fmt.Sprintf("fbm: header parse error at offset %d: %s", e.Offset, e.Diagnostic)
}
