package buffer

import "sync/atomic"

// Phase tracks which of the two aliased header views (request or
// response) may legally be read or written right now. It is the
// "phase tag" spec.md §9 describes for languages without an ownership
// system: the connection engine advances it at exactly the state
// transitions documented in spec.md §4.6, and a Block refuses to hand
// out a view that doesn't match the current phase.
type Phase int32

const (
	// PhaseRequest is active from allocation through dispatch: only
	// RequestHeaderBuf is valid.
	PhaseRequest Phase = iota
	// PhaseResponse is active from WritingResponse onward: only
	// ResponseHeaderBuf is valid. Entered via Block.BeginResponsePhase.
	PhaseResponse
)

// Block is one pooled, contiguous byte region sliced into the four
// non-overlapping segments of spec.md §3: header accumulator (shared by
// the aliased request/response header views), discard/form-data
// scratch, chunked-response accumulator, and response staging.
type Block struct {
	raw    []byte
	cfg    Config
	phase  atomic.Int32
	freed  atomic.Bool

	headerSeg []byte
	formSeg   []byte
	chunkSeg  []byte
	stageSeg  []byte
}

func newBlock(cfg Config) *Block {
	raw := make([]byte, cfg.totalSize())
	b := &Block{raw: raw, cfg: cfg}
	b.slice()
	b.phase.Store(int32(PhaseRequest))
	return b
}

// slice carves the contiguous raw block into segments. Each segment is
// exactly as large as its configured size; there are no gaps between
// segments, per spec.md §4.1.
func (b *Block) slice() {
	off := 0
	hsz := b.cfg.headerSegmentSize()
	b.headerSeg = b.raw[off : off+hsz]
	off += hsz

	b.formSeg = b.raw[off : off+b.cfg.DiscardOrFormSize]
	off += b.cfg.DiscardOrFormSize

	b.chunkSeg = b.raw[off : off+b.cfg.ChunkAccumulatorSize]
	off += b.cfg.ChunkAccumulatorSize

	b.stageSeg = b.raw[off : off+b.cfg.ResponseStagingSize]
}

// RequestHeaderBuf returns the header segment for use as the request
// header accumulator. Valid only while the block is in PhaseRequest.
func (b *Block) RequestHeaderBuf() ([]byte, error) {
	if b.freed.Load() {
		return nil, ErrAlreadyFreed
	}
	if Phase(b.phase.Load()) != PhaseRequest {
		return nil, ErrWrongPhase
	}
	return b.headerSeg, nil
}

// ResponseHeaderBuf returns the SAME header segment for use as the
// response header accumulator. Valid only while the block is in
// PhaseResponse. This is the deliberate alias spec.md §4.1 describes:
// request headers are fully consumed before response headers are
// built, so the 16KB-class segment is never double-allocated.
func (b *Block) ResponseHeaderBuf() ([]byte, error) {
	if b.freed.Load() {
		return nil, ErrAlreadyFreed
	}
	if Phase(b.phase.Load()) != PhaseResponse {
		return nil, ErrWrongPhase
	}
	return b.headerSeg, nil
}

// BeginResponsePhase ends the request-header view's lifetime and starts
// the response-header view's. The connection engine calls this exactly
// once per turn, at the ReadingBody/Dispatching → WritingResponse
// transition (spec.md §4.6).
func (b *Block) BeginResponsePhase() {
	b.phase.Store(int32(PhaseResponse))
}

// BeginRequestPhase resets the block to PhaseRequest for the next turn
// on a keep-alive connection.
func (b *Block) BeginRequestPhase() {
	b.phase.Store(int32(PhaseRequest))
}

// DiscardOrFormBuf returns the shared discard-drain / multipart-and-
// urlencoded-form scratch segment.
func (b *Block) DiscardOrFormBuf() ([]byte, error) {
	if b.freed.Load() {
		return nil, ErrAlreadyFreed
	}
	return b.formSeg, nil
}

// ChunkAccumulatorBuf returns the chunked-transfer-encoding assembly
// segment.
func (b *Block) ChunkAccumulatorBuf() ([]byte, error) {
	if b.freed.Load() {
		return nil, ErrAlreadyFreed
	}
	return b.chunkSeg, nil
}

// ResponseStagingBuf returns the response-body staging segment.
func (b *Block) ResponseStagingBuf() ([]byte, error) {
	if b.freed.Load() {
		return nil, ErrAlreadyFreed
	}
	return b.stageSeg, nil
}

// ZeroAll overwrites the entire underlying block. Called between turns
// when a connection carries sensitive data across keep-alive reuse.
func (b *Block) ZeroAll() {
	for i := range b.raw {
		b.raw[i] = 0
	}
}

// freedState reports whether FreeAll has already run, for Pool's Put.
func (b *Block) freedState() bool {
	return b.freed.Load()
}

// markFreed is idempotent: repeated calls are no-ops, per spec.md §4.1.
func (b *Block) markFreed() bool {
	return b.freed.CompareAndSwap(false, true)
}

func (b *Block) reset() {
	b.freed.Store(false)
	b.phase.Store(int32(PhaseRequest))
}
