package httpengine

import (
	"io"
	"sync"
)

// Object pools for the per-request types that would otherwise
// allocate on every turn of the connection loop. Grounded on
// shockwave/pkg/shockwave/http11/pool.go's standard sync.Pool
// strategy — that file also offers a per-CPU pool variant selectable
// via SetPoolStrategy, which benchmarks in the teacher's own test
// suite showed no advantage for typical HTTP workloads; it is not
// carried over here (see DESIGN.md).
var (
	requestPool = sync.Pool{
		New: func() interface{} { return &Request{} },
	}
	responseWriterPool = sync.Pool{
		New: func() interface{} { return &ResponseWriter{} },
	}
	parserPool = sync.Pool{
		New: func() interface{} { return NewParser() },
	}
)

// GetRequest obtains a Request from the pool. Callers must call
// PutRequest when done.
func GetRequest() *Request {
	return requestPool.Get().(*Request)
}

// PutRequest resets and returns req to the pool.
func PutRequest(req *Request) {
	req.Reset()
	requestPool.Put(req)
}

// GetResponseWriter obtains a ResponseWriter wired to w.
func GetResponseWriter(w io.Writer) *ResponseWriter {
	rw := responseWriterPool.Get().(*ResponseWriter)
	rw.Reset(w)
	return rw
}

// PutResponseWriter returns rw to the pool.
func PutResponseWriter(rw *ResponseWriter) {
	responseWriterPool.Put(rw)
}

// GetParser obtains a Parser, its pipelining state cleared.
func GetParser() *Parser {
	p := parserPool.Get().(*Parser)
	p.Reset()
	return p
}

// PutParser returns p to the pool.
func PutParser(p *Parser) {
	parserPool.Put(p)
}
