package httpengine

import (
	"bytes"
	"io"
)

// Parser implements zero-allocation HTTP/1.x request-line and header
// parsing into a caller-supplied fixed buffer (the connection's
// request-header segment, per buffer.Block.RequestHeaderBuf). Unlike a
// growable buffer, exceeding the segment's capacity is itself the
// HeaderTooLarge condition spec.md's error model calls for — there is
// no fallback heap growth.
//
// Grounded on shockwave/pkg/shockwave/http11/parser.go's single-pass,
// pipelining-aware state machine.
type Parser struct {
	// unread holds bytes read past the end of the current request's
	// headers — either pipelined request bytes or the start of the
	// body — for the next Parse (or body read) to consume first.
	unread []byte
}

// NewParser returns a Parser ready to read into any segment size.
func NewParser() *Parser { return &Parser{} }

// Reset clears pipelining state, e.g. when the Parser is pooled.
func (p *Parser) Reset() { p.unread = nil }

// Parse reads a request line and headers from r into headerBuf,
// filling req (obtained from the caller's Request pool). It returns
// only an error; the header byte count is not reported. The caller is responsible for
// wiring req.Body by calling SetupBodyReader afterward, since the
// reader used for the body must account for any pipelined bytes left
// in p.unread.
func (p *Parser) Parse(r io.Reader, req *Request, headerBuf []byte) error {
	n, err := p.readUntilHeadersEnd(r, headerBuf)
	if err != nil {
		return err
	}

	req.Proto = http11Proto
	req.ProtoMajor = ProtoHTTP11Major
	req.ProtoMinor = ProtoHTTP11Minor
	req.buf = headerBuf[:n]

	pos, err := p.parseRequestLine(req, req.buf)
	if err != nil {
		return err
	}
	if err := p.parseHeaders(req, req.buf[pos:]); err != nil {
		return err
	}
	return nil
}

// BodyReader returns the io.Reader the body should be read from: any
// bytes Parse over-read (pipelined data) prepended to r.
func (p *Parser) BodyReader(r io.Reader) io.Reader {
	if len(p.unread) == 0 {
		return r
	}
	leftover := p.unread
	p.unread = nil
	return io.MultiReader(bytes.NewReader(leftover), r)
}

// SetupBodyReader wires req.Body based on Content-Length or
// Transfer-Encoding, using BodyReader(r) as the source.
func (p *Parser) SetupBodyReader(req *Request, r io.Reader) error {
	src := p.BodyReader(r)

	if req.ContentLength == 0 && len(req.TransferEncoding) == 0 {
		req.Body = nil
		return nil
	}
	if req.ContentLength > 0 {
		req.Body = io.LimitReader(src, req.ContentLength)
		return nil
	}
	if req.IsChunked() {
		req.Body = NewChunkedBodyReader(src)
		return nil
	}
	req.Body = nil
	return nil
}

// readUntilHeadersEnd fills headerBuf from r until "\r\n\r\n" is
// found, returning the number of bytes up to and including it. Bytes
// read past the terminator are saved to p.unread for BodyReader.
func (p *Parser) readUntilHeadersEnd(r io.Reader, headerBuf []byte) (int, error) {
	filled := 0

	if len(p.unread) > 0 {
		n := copy(headerBuf, p.unread)
		filled = n
		if n < len(p.unread) {
			// headerBuf is smaller than the leftover pipelined bytes;
			// this can't happen in practice since the segment is sized
			// to hold at least one full request, but guard anyway.
			p.unread = p.unread[n:]
		} else {
			p.unread = nil
		}
		if idx := findHeadersEnd(headerBuf[:filled]); idx != -1 {
			return p.finishHeadersEnd(headerBuf, filled, idx)
		}
	}

	for {
		if filled >= len(headerBuf) {
			return 0, ErrHeadersTooLarge
		}
		n, err := r.Read(headerBuf[filled:])
		if n > 0 {
			filled += n
			if idx := findHeadersEnd(headerBuf[:filled]); idx != -1 {
				return p.finishHeadersEnd(headerBuf, filled, idx)
			}
		}
		if err != nil {
			if err == io.EOF {
				return 0, ErrUnexpectedEOF
			}
			return 0, err
		}
		if n == 0 {
			continue
		}
	}
}

// finishHeadersEnd splits headerBuf[:filled] at the "\r\n\r\n"
// terminator found at idx, stashing anything past it (pipelined
// request bytes) into p.unread.
func (p *Parser) finishHeadersEnd(headerBuf []byte, filled, idx int) (int, error) {
	end := idx + 4
	if end < filled {
		leftover := make([]byte, filled-end)
		copy(leftover, headerBuf[end:filled])
		p.unread = leftover
	}
	return end, nil
}

func findHeadersEnd(buf []byte) int {
	return bytes.Index(buf, []byte("\r\n\r\n"))
}

// parseRequestLine parses "METHOD SP Request-URI SP HTTP-Version
// CRLF", returning the offset of the first header line.
func (p *Parser) parseRequestLine(req *Request, buf []byte) (int, error) {
	lineEnd := bytes.Index(buf, crlfBytes)
	if lineEnd == -1 {
		return 0, ErrInvalidRequestLine
	}
	line := buf[:lineEnd]
	if len(line) > MaxRequestLineSize {
		return 0, ErrRequestLineTooLarge
	}

	spaceIdx := bytes.IndexByte(line, ' ')
	if spaceIdx == -1 {
		return 0, ErrInvalidRequestLine
	}
	methodBytes := line[:spaceIdx]
	req.MethodID = ParseMethodID(methodBytes)
	if req.MethodID == MethodUnknown {
		return 0, ErrInvalidMethod
	}
	req.methodBytes = methodBytes

	line = line[spaceIdx+1:]
	spaceIdx = bytes.IndexByte(line, ' ')
	if spaceIdx == -1 {
		return 0, ErrInvalidRequestLine
	}
	uriBytes := line[:spaceIdx]
	if len(uriBytes) > MaxURILength {
		return 0, ErrURITooLong
	}

	if queryIdx := bytes.IndexByte(uriBytes, '?'); queryIdx != -1 {
		req.pathBytes = uriBytes[:queryIdx]
		req.queryBytes = uriBytes[queryIdx+1:]
	} else {
		req.pathBytes = uriBytes
		req.queryBytes = nil
	}
	if len(req.pathBytes) == 0 || (req.pathBytes[0] != '/' && req.pathBytes[0] != '*') {
		return 0, ErrInvalidPath
	}

	line = line[spaceIdx+1:]
	req.protoBytes = line
	if !bytes.Equal(line, http11Bytes) && !bytes.Equal(line, http10Bytes) {
		return 0, ErrInvalidProtocol
	}

	return lineEnd + 2, nil
}

// parseHeaders parses "Name: Value\r\n" lines up to the terminating
// blank line, rejecting the CL.TE and duplicate-Content-Length
// smuggling vectors per RFC 7230 §3.3.3.
func (p *Parser) parseHeaders(req *Request, buf []byte) error {
	pos := 0
	var hasContentLength, hasTransferEncoding, hasHost, hasKeepAlive bool
	var contentLengthValue int64 = -1

	for {
		if pos >= len(buf) {
			break
		}
		if pos+1 < len(buf) && buf[pos] == '\r' && buf[pos+1] == '\n' {
			break
		}

		lineEnd := bytes.Index(buf[pos:], crlfBytes)
		if lineEnd == -1 {
			return ErrInvalidHeader
		}
		lineEnd += pos
		line := buf[pos:lineEnd]

		colonIdx := bytes.IndexByte(line, ':')
		if colonIdx == -1 {
			return ErrInvalidHeader
		}
		name := line[:colonIdx]
		value := line[colonIdx+1:]

		if colonIdx > 0 && (line[colonIdx-1] == ' ' || line[colonIdx-1] == '\t') {
			return ErrInvalidHeader
		}
		value = trimLeadingSpace(value)
		value = trimTrailingSpace(value)
		if bytes.IndexByte(name, ' ') != -1 || bytes.IndexByte(name, '\t') != -1 {
			return ErrInvalidHeader
		}

		if err := req.Header.Add(name, value); err != nil {
			return err
		}
		if err := p.processSpecialHeader(req, name, value, &hasContentLength, &hasTransferEncoding, &contentLengthValue, &hasHost, &hasKeepAlive); err != nil {
			return err
		}

		pos = lineEnd + 2
	}

	if hasContentLength && hasTransferEncoding {
		return ErrContentLengthWithTransferEncoding
	}

	// RFC 7230 §6.3: HTTP/1.0 connections close by default unless the
	// client asked to keep it alive; HTTP/1.1 connections stay open
	// unless Connection: close was seen (handled in
	// processSpecialHeader already).
	if bytes.Equal(req.protoBytes, http10Bytes) && !hasKeepAlive {
		req.Close = true
	}
	return nil
}

func (p *Parser) processSpecialHeader(req *Request, name, value []byte,
	hasContentLength, hasTransferEncoding *bool, contentLengthValue *int64, hasHost, hasKeepAlive *bool) error {

	if bytesEqualCaseInsensitive(name, headerContentLength) {
		cl, err := parseContentLength(value)
		if err != nil {
			return ErrInvalidContentLength
		}
		if *hasContentLength {
			if *contentLengthValue != cl {
				return ErrDuplicateContentLength
			}
			return nil
		}
		*hasContentLength = true
		*contentLengthValue = cl
		req.ContentLength = cl
		return nil
	}

	if bytesEqualCaseInsensitive(name, headerTransferEncoding) {
		*hasTransferEncoding = true
		if bytesEqualCaseInsensitive(value, headerChunked) {
			req.TransferEncoding = []string{"chunked"}
		}
		return nil
	}

	if bytesEqualCaseInsensitive(name, headerConnection) {
		if bytesEqualCaseInsensitive(value, headerClose) {
			req.Close = true
		}
		if bytesEqualCaseInsensitive(value, headerKeepAlive) {
			*hasKeepAlive = true
		}
		return nil
	}

	if bytesEqualCaseInsensitive(name, headerHost) {
		if *hasHost {
			return ErrInvalidHeader
		}
		*hasHost = true
		return nil
	}

	return nil
}

func parseContentLength(b []byte) (int64, error) {
	if len(b) == 0 {
		return -1, ErrInvalidContentLength
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return -1, ErrInvalidContentLength
		}
		n = n*10 + int64(c-'0')
		if n < 0 {
			return -1, ErrInvalidContentLength
		}
	}
	return n, nil
}

func trimLeadingSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	return b
}

func trimTrailingSpace(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
