// Package buffer implements the per-connection buffer manager described
// in spec.md §4.1: one pooled, contiguous block per connection, sliced
// into non-overlapping segments, with the request-header and
// response-header segments deliberately aliased.
//
// Grounded on shockwave/pkg/shockwave/buffer_pool.go's size-classed pool
// (atomic counters, sync.Pool per class), redesigned around a single
// block per connection instead of many independently sized buffers.
package buffer

// Config is the immutable sizing configuration for one connection's
// buffer block. All segment sizes are fixed for the lifetime of a Pool.
type Config struct {
	// RequestHeaderSize bounds the request-line + header bytes the
	// parser may accumulate before HeaderTooLarge.
	RequestHeaderSize int

	// ResponseHeaderSize bounds the status-line + header bytes the
	// writer may accumulate.
	ResponseHeaderSize int

	// DiscardOrFormSize bounds multipart/urlencoded body scratch and
	// the discard-drain scratch.
	DiscardOrFormSize int

	// ChunkAccumulatorSize bounds the chunked-response accumulator.
	ChunkAccumulatorSize int

	// ResponseStagingSize bounds the response staging segment, where
	// bytes accumulate before being chunked (or written directly).
	ResponseStagingSize int

	// CharBufferMultiplier scales the header segment size. spec.md §9
	// leaves the exact factor an open question for UTF-8-internal
	// implementations; the parser here works on raw bytes and keeps no
	// separate decoded-character area, and DefaultConfig sets it to 1.
	CharBufferMultiplier int
}

// DefaultConfig returns production-sized defaults, matching the order of
// magnitude of shockwave's MaxRequestLineSize+MaxHeadersSize (16KB) and
// DefaultBufferSize (4KB) constants.
func DefaultConfig() Config {
	return Config{
		RequestHeaderSize:    16 * 1024,
		ResponseHeaderSize:   8 * 1024,
		DiscardOrFormSize:    64 * 1024,
		ChunkAccumulatorSize: 16 * 1024,
		ResponseStagingSize:  32 * 1024,
		CharBufferMultiplier: 1,
	}
}

func (c Config) headerSegmentSize() int {
	req := c.RequestHeaderSize
	resp := c.ResponseHeaderSize
	max := req
	if resp > max {
		max = resp
	}
	mult := c.CharBufferMultiplier
	if mult < 1 {
		mult = 1
	}
	return max * mult
}

// totalSize is the exact contiguous size of one connection's block: the
// sum of all segments with no gaps, per spec.md §4.1.
func (c Config) totalSize() int {
	return c.headerSegmentSize() + c.DiscardOrFormSize + c.ChunkAccumulatorSize + c.ResponseStagingSize
}
