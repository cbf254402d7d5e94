package dispatch

import (
	"io"
	"sync"
)

// MessageBody is what a handler reads a request's body through. It
// mirrors §6's IAsyncMessageBody: a content type, a remaining-bytes
// count, and a read method — deliberately narrower than io.Reader so
// handlers can size their own reads against Remaining() without a type
// assertion.
type MessageBody interface {
	ContentType() string
	Remaining() int
	Read(buf []byte) (int, error)
	Close() error
}

// windowedBody backs MessageBody with a pooled fixed-size scratch
// block (the "sliding-window buffer abstraction" of §4.9) rather than
// a per-request allocation. A body that doesn't fit the configured
// window is rejected by the dispatcher before a windowedBody is ever
// built — see Dispatcher.handleFrame.
type windowedBody struct {
	contentType string
	window      []byte
	n           int
	pos         int
	release     func([]byte)
}

func (b *windowedBody) ContentType() string { return b.contentType }

func (b *windowedBody) Remaining() int { return b.n - b.pos }

func (b *windowedBody) Read(buf []byte) (int, error) {
	if b.pos >= b.n {
		return 0, io.EOF
	}
	k := copy(buf, b.window[b.pos:b.n])
	b.pos += k
	return k, nil
}

func (b *windowedBody) Close() error {
	if b.release != nil {
		b.release(b.window)
		b.release = nil
	}
	return nil
}

// bodyWindowPool hands out fixed-size scratch blocks for incoming
// request bodies, sized once at dispatcher construction.
type bodyWindowPool struct {
	size int
	pool sync.Pool
}

func newBodyWindowPool(size int) *bodyWindowPool {
	return &bodyWindowPool{
		size: size,
		pool: sync.Pool{New: func() interface{} { return make([]byte, size) }},
	}
}

func (p *bodyWindowPool) get() []byte {
	return p.pool.Get().([]byte)
}

func (p *bodyWindowPool) put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	p.pool.Put(buf[:p.size])
}
