package httpengine

import (
	"io"
	"net/url"
)

// Request is a parsed HTTP/1.x request. It is built for pooling: the
// method/path/query/proto fields are zero-copy slices into the
// connection's request-header buffer segment and are valid only until
// Reset is called (on Connection re-use) or the buffer's phase flips
// to response (buffer.Block.BeginResponsePhase).
type Request struct {
	MethodID uint8

	methodBytes []byte
	pathBytes   []byte
	queryBytes  []byte
	protoBytes  []byte

	pathParsed *url.URL

	Header Header

	// Body is nil if the request has no body, an io.LimitReader-style
	// reader for Content-Length bodies, or a ChunkedBodyReader for
	// chunked transfer encoding.
	Body io.Reader

	Proto      string
	ProtoMajor int
	ProtoMinor int

	ContentLength int64

	TransferEncoding []string

	// Close is true if the connection must not be reused after this
	// request ("Connection: close", or HTTP/1.0 without keep-alive).
	Close bool

	RemoteAddr string

	buf []byte
}

func (r *Request) Method() string       { return MethodString(r.MethodID) }
func (r *Request) MethodBytes() []byte  { return r.methodBytes }
func (r *Request) Path() string         { return string(r.pathBytes) }
func (r *Request) PathBytes() []byte    { return r.pathBytes }
func (r *Request) Query() string        { return string(r.queryBytes) }
func (r *Request) QueryBytes() []byte   { return r.queryBytes }

// ParsedURL lazily parses path+query into a *url.URL, caching the
// result. Prefer PathBytes/QueryBytes on the hot path to avoid the
// allocation.
func (r *Request) ParsedURL() (*url.URL, error) {
	if r.pathParsed == nil {
		urlStr := string(r.pathBytes)
		if len(r.queryBytes) > 0 {
			urlStr += "?" + string(r.queryBytes)
		}
		parsed, err := url.Parse(urlStr)
		if err != nil {
			return nil, err
		}
		r.pathParsed = parsed
	}
	return r.pathParsed, nil
}

func (r *Request) GetHeader(name []byte) []byte         { return r.Header.Get(name) }
func (r *Request) GetHeaderString(name string) string    { return r.Header.GetString([]byte(name)) }
func (r *Request) HasHeader(name []byte) bool            { return r.Header.Has(name) }

func (r *Request) IsGET() bool     { return r.MethodID == MethodGET }
func (r *Request) IsPOST() bool    { return r.MethodID == MethodPOST }
func (r *Request) IsPUT() bool     { return r.MethodID == MethodPUT }
func (r *Request) IsDELETE() bool  { return r.MethodID == MethodDELETE }
func (r *Request) IsPATCH() bool   { return r.MethodID == MethodPATCH }
func (r *Request) IsHEAD() bool    { return r.MethodID == MethodHEAD }
func (r *Request) IsOPTIONS() bool { return r.MethodID == MethodOPTIONS }

func (r *Request) HasBody() bool {
	return r.ContentLength > 0 || len(r.TransferEncoding) > 0
}

// IsChunked reports whether the last transfer-coding is "chunked", the
// only configuration this engine accepts (RFC 7230 §3.3.1: chunked
// must be the final encoding).
func (r *Request) IsChunked() bool {
	if len(r.TransferEncoding) == 0 {
		return false
	}
	return r.TransferEncoding[len(r.TransferEncoding)-1] == "chunked"
}

func (r *Request) ShouldClose() bool { return r.Close }

// Reset clears the request for reuse from a pool.
func (r *Request) Reset() {
	r.MethodID = 0
	r.methodBytes = nil
	r.pathBytes = nil
	r.queryBytes = nil
	r.protoBytes = nil
	r.pathParsed = nil
	r.Header.Reset()
	r.Body = nil
	r.Proto = ""
	r.ProtoMajor = 0
	r.ProtoMinor = 0
	r.ContentLength = 0
	r.TransferEncoding = nil
	r.Close = false
	r.RemoteAddr = ""
	r.buf = nil
}

// Clone copies path/query/proto/headers into freshly allocated storage
// so the result outlives the pooled buffer the original referenced.
// The body reader is not cloned.
func (r *Request) Clone() *Request {
	clone := &Request{
		MethodID:         r.MethodID,
		methodBytes:      []byte(r.Method()),
		pathBytes:        []byte(r.Path()),
		queryBytes:       []byte(r.Query()),
		protoBytes:       []byte(r.Proto),
		Proto:            r.Proto,
		ProtoMajor:       r.ProtoMajor,
		ProtoMinor:       r.ProtoMinor,
		ContentLength:    r.ContentLength,
		TransferEncoding: r.TransferEncoding,
		Close:            r.Close,
		RemoteAddr:       r.RemoteAddr,
	}
	r.Header.VisitAll(func(name, value []byte) bool {
		clone.Header.Add(name, value)
		return true
	})
	if r.pathParsed != nil {
		if parsed, _ := r.ParsedURL(); parsed != nil {
			clone.pathParsed = &url.URL{
				Scheme:   parsed.Scheme,
				Host:     parsed.Host,
				Path:     parsed.Path,
				RawQuery: parsed.RawQuery,
			}
		}
	}
	return clone
}
