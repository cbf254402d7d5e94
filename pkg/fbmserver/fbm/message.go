package fbm

// Header is one ordered entry in a frame's header block: a 1-byte
// command code plus its value. Values are kept as raw bytes — callers
// that want a string convert at the call site.
type Header struct {
	Command byte
	Value   []byte
}

// Message is one parsed (or to-be-serialized) FBM frame: a message id
// correlating requests and responses, an ordered header list, and a
// body. Headers preserve encounter order; CommandContentType and
// CommandStatus are looked up by scanning rather than stored in
// dedicated fields, so a round trip through Encode/Decode reproduces
// the exact header order a peer sent.
type Message struct {
	ID      uint32
	Headers []Header
	Body    []byte
}

// AddHeader appends a header in the order it should be serialized.
func (m *Message) AddHeader(command byte, value string) {
	m.Headers = append(m.Headers, Header{Command: command, Value: []byte(value)})
}

// Header returns the value of the first header with the given command
// code, and whether one was present.
func (m *Message) Header(command byte) (string, bool) {
	for _, h := range m.Headers {
		if h.Command == command {
			return string(h.Value), true
		}
	}
	return "", false
}

// HeaderValues returns the values of every header with the given
// command code, in encounter order — CommandGenericHeader is typically
// repeated, unlike CommandStatus or CommandContentType.
func (m *Message) HeaderValues(command byte) []string {
	var out []string
	for _, h := range m.Headers {
		if h.Command == command {
			out = append(out, string(h.Value))
		}
	}
	return out
}

// ContentType returns the CommandContentType header's value, if set.
func (m *Message) ContentType() (string, bool) {
	return m.Header(CommandContentType)
}

// SetContentType appends a CommandContentType header.
func (m *Message) SetContentType(contentType string) {
	m.AddHeader(CommandContentType, contentType)
}

// Status returns the CommandStatus header's value parsed as a decimal
// status/error code, if set and well-formed.
func (m *Message) Status() (int, bool) {
	v, ok := m.Header(CommandStatus)
	if !ok {
		return 0, false
	}
	code := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, false
		}
		code = code*10 + int(v[i]-'0')
	}
	return code, true
}

// SetStatus appends a CommandStatus header carrying code in decimal.
func (m *Message) SetStatus(code int) {
	m.AddHeader(CommandStatus, itoa(code))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
