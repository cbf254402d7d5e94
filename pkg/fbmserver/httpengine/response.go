package httpengine

import (
	"io"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// ResponseWriter writes an HTTP/1.x response: a pre-compiled status
// line where possible, inline headers (reusing Header's zero-alloc
// storage), then a body written either directly or chunked.
//
// Headers are written once, on the first Write, WriteChunk or Flush.
// Body bytes from Write go straight to w; the buffer.Block's response
// staging segment is not used. In chunked mode each WriteChunk call
// frames one chunk with its hex size and CRLFs (in the
// chunk-accumulator segment when one is wired) and writes it to w at
// once; chunks are not batched. No compressor is applied here: w is
// whatever writer the caller passes in, which for a Connection is its
// bufio.Writer over the transport.
type ResponseWriter struct {
	w io.Writer

	status int
	header Header

	statusWritten bool
	headerWritten bool
	bytesWritten  int64

	chunked bool

	// chunkBuf is the fixed chunk-accumulator segment
	// (buffer.Block.ChunkAccumulatorBuf). nil means WriteChunk falls
	// back to writing each chunk directly (used by tests that don't
	// wire a buffer.Block).
	chunkBuf []byte

	// scratch is not read or set by any write path: buildStatusLine
	// takes its own buffer from bytebufferpool, and WriteChunk formats
	// hex sizes with strconv.
	scratch *bytebufferpool.ByteBuffer
}

// NewResponseWriter creates a ResponseWriter over w, defaulting to
// status 200 per RFC 7231 §6.3.1.
func NewResponseWriter(w io.Writer) *ResponseWriter {
	return &ResponseWriter{w: w, status: 200}
}

// Header returns the response header collection. Set headers before
// the first Write, WriteChunk or Flush call; WriteHeader only records
// the status and does not send headers.
func (rw *ResponseWriter) Header() *Header { return &rw.header }

// WriteHeader records the status code. Only the first call has any
// effect, matching net/http's semantics.
func (rw *ResponseWriter) WriteHeader(statusCode int) {
	if rw.statusWritten {
		return
	}
	rw.status = statusCode
	rw.statusWritten = true
}

// Write writes body bytes, implicitly calling WriteHeader(200) first
// if no status was set yet.
func (rw *ResponseWriter) Write(data []byte) (int, error) {
	if !rw.headerWritten {
		if err := rw.writeHeaders(); err != nil {
			return 0, err
		}
	}
	n, err := rw.w.Write(data)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *ResponseWriter) writeHeaders() error {
	if rw.headerWritten {
		return nil
	}
	rw.headerWritten = true

	if _, err := rw.w.Write(getStatusLine(rw.status)); err != nil {
		return err
	}

	var werr error
	rw.header.VisitAll(func(name, value []byte) bool {
		if _, err := rw.w.Write(name); err != nil {
			werr = err
			return false
		}
		if _, err := rw.w.Write(colonSpace); err != nil {
			werr = err
			return false
		}
		if _, err := rw.w.Write(value); err != nil {
			werr = err
			return false
		}
		if _, err := rw.w.Write(crlfBytes); err != nil {
			werr = err
			return false
		}
		return true
	})
	if werr != nil {
		return werr
	}

	_, err := rw.w.Write(crlfBytes)
	return err
}

// Flush writes headers if they haven't been written yet, and flushes
// the underlying writer if it supports it (a bufio.Writer, or a
// compress.Compressor's Writer wired in front of the transport).
func (rw *ResponseWriter) Flush() error {
	if !rw.headerWritten {
		if err := rw.writeHeaders(); err != nil {
			return err
		}
	}
	if flusher, ok := rw.w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

func (rw *ResponseWriter) Status() int        { return rw.status }
func (rw *ResponseWriter) BytesWritten() int64 { return rw.bytesWritten }
func (rw *ResponseWriter) HeaderWritten() bool { return rw.headerWritten }

// UseChunkAccumulator wires a fixed buffer (the connection's
// buffer.Block.ChunkAccumulatorBuf) for WriteChunk to assemble framed
// chunks in before draining to the transport, bounding chunk encoding
// to a single allocation-free scratch area.
func (rw *ResponseWriter) UseChunkAccumulator(buf []byte) {
	rw.chunkBuf = buf
}

// Reset prepares the ResponseWriter for reuse over a new writer (pool
// recycling between keep-alive requests).
func (rw *ResponseWriter) Reset(w io.Writer) {
	rw.w = w
	rw.status = 200
	rw.header.Reset()
	rw.statusWritten = false
	rw.headerWritten = false
	rw.bytesWritten = 0
	rw.chunked = false
	rw.chunkBuf = nil
}

func getStatusLine(code int) []byte {
	switch code {
	case 100:
		return status100Bytes
	case 101:
		return status101Bytes
	case 200:
		return status200Bytes
	case 201:
		return status201Bytes
	case 204:
		return status204Bytes
	case 206:
		return status206Bytes
	case 301:
		return status301Bytes
	case 302:
		return status302Bytes
	case 304:
		return status304Bytes
	case 400:
		return status400Bytes
	case 401:
		return status401Bytes
	case 403:
		return status403Bytes
	case 404:
		return status404Bytes
	case 405:
		return status405Bytes
	case 408:
		return status408Bytes
	case 411:
		return status411Bytes
	case 413:
		return status413Bytes
	case 414:
		return status414Bytes
	case 431:
		return status431Bytes
	case 500:
		return status500Bytes
	case 501:
		return status501Bytes
	case 503:
		return status503Bytes
	default:
		return buildStatusLine(code)
	}
}

// buildStatusLine formats an uncommon status code via a pooled
// scratch buffer, returning a copy safe to hand to the writer (the
// scratch buffer itself is returned to the pool immediately).
func buildStatusLine(code int) []byte {
	text, ok := statusReasonFallback[code]
	if !ok {
		text = "Unknown"
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(code))
	buf.WriteByte(' ')
	buf.WriteString(text)
	buf.WriteString("\r\n")
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}

// WriteJSON sets Content-Type/Content-Length and writes data as a
// single response.
func (rw *ResponseWriter) WriteJSON(statusCode int, data []byte) error {
	rw.WriteHeader(statusCode)
	rw.header.Set(headerContentType, []byte("application/json; charset=utf-8"))
	rw.header.Set(headerContentLength, []byte(strconv.Itoa(len(data))))
	if _, err := rw.Write(data); err != nil {
		return err
	}
	return rw.Flush()
}

// WriteText is WriteJSON for text/plain.
func (rw *ResponseWriter) WriteText(statusCode int, data []byte) error {
	rw.WriteHeader(statusCode)
	rw.header.Set(headerContentType, []byte("text/plain; charset=utf-8"))
	rw.header.Set(headerContentLength, []byte(strconv.Itoa(len(data))))
	if _, err := rw.Write(data); err != nil {
		return err
	}
	return rw.Flush()
}

// WriteError writes a short plain-text error body with statusCode.
func (rw *ResponseWriter) WriteError(statusCode int, message string) error {
	return rw.WriteText(statusCode, []byte(message))
}

// WriteChunk writes one chunked-transfer-encoding frame, writing
// headers (including Transfer-Encoding: chunked) on the first call.
// When a chunk accumulator is wired via UseChunkAccumulator, the
// framed chunk is assembled there before a single write to the
// transport; otherwise each piece is written directly.
func (rw *ResponseWriter) WriteChunk(chunk []byte) error {
	if !rw.headerWritten {
		rw.chunked = true
		if rw.header.Get(headerTransferEncoding) == nil {
			rw.header.Set(headerTransferEncoding, headerChunked)
		}
		if err := rw.writeHeaders(); err != nil {
			return err
		}
	}
	if len(chunk) == 0 {
		return nil
	}

	sizeHex := strconv.FormatInt(int64(len(chunk)), 16)

	if rw.chunkBuf != nil {
		n, err := rw.assembleChunk(chunk, sizeHex)
		if err != nil {
			return err
		}
		if _, err := rw.w.Write(rw.chunkBuf[:n]); err != nil {
			return err
		}
		rw.bytesWritten += int64(len(chunk))
		return nil
	}

	if _, err := rw.w.Write([]byte(sizeHex)); err != nil {
		return err
	}
	if _, err := rw.w.Write(crlfBytes); err != nil {
		return err
	}
	if _, err := rw.w.Write(chunk); err != nil {
		return err
	}
	if _, err := rw.w.Write(crlfBytes); err != nil {
		return err
	}
	rw.bytesWritten += int64(len(chunk))
	return nil
}

// assembleChunk frames chunk into rw.chunkBuf as "hex CRLF data CRLF",
// returning the number of bytes written. Returns ErrBufferTooSmall if
// the framed chunk does not fit the accumulator (the caller should
// split the chunk and call WriteChunk again with smaller pieces).
func (rw *ResponseWriter) assembleChunk(chunk []byte, sizeHex string) (int, error) {
	need := len(sizeHex) + 2 + len(chunk) + 2
	if need > len(rw.chunkBuf) {
		return 0, ErrBufferTooSmall
	}
	n := copy(rw.chunkBuf, sizeHex)
	n += copy(rw.chunkBuf[n:], crlfBytes)
	n += copy(rw.chunkBuf[n:], chunk)
	n += copy(rw.chunkBuf[n:], crlfBytes)
	return n, nil
}

// FinishChunked writes the terminating "0\r\n\r\n" marker.
func (rw *ResponseWriter) FinishChunked() error {
	if _, err := rw.w.Write([]byte("0\r\n\r\n")); err != nil {
		return err
	}
	return rw.Flush()
}
