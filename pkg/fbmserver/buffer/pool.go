package buffer

import (
	"sync"
	"sync/atomic"
)

// Pool hands out Blocks sized per a single Config. It is thread-safe
// (shockwave/pkg/shockwave/buffer_pool.go's BufferPool is the model:
// atomic counters plus a sync.Pool), but unlike that size-classed pool,
// every Block here is the single aliased block of spec.md §4.1 — there
// is one size class because there is one shape of connection context.
type Pool struct {
	cfg  Config
	pool sync.Pool

	// maxOutstanding caps the number of blocks the pool will hand out
	// concurrently (0 = unbounded). Exceeding it is the only way
	// Allocate returns ErrResourceExhausted, per spec.md §4.1.
	maxOutstanding int64
	outstanding    atomic.Int64

	gets   atomic.Uint64
	puts   atomic.Uint64
	misses atomic.Uint64
}

// NewPool creates a Pool for the given Config. maxOutstanding of 0
// means the pool never refuses (it still reuses Blocks via sync.Pool,
// but growth is unbounded).
func NewPool(cfg Config, maxOutstanding int) *Pool {
	p := &Pool{cfg: cfg, maxOutstanding: int64(maxOutstanding)}
	p.pool.New = func() interface{} {
		p.misses.Add(1)
		return newBlock(cfg)
	}
	return p
}

// Allocate obtains one Block sized per Config, sliced into the four
// segments of spec.md §4.1. It fails with ErrResourceExhausted only if
// the pool refuses (i.e. maxOutstanding is set and already reached).
func (p *Pool) Allocate() (*Block, error) {
	if p.maxOutstanding > 0 {
		if p.outstanding.Add(1) > p.maxOutstanding {
			p.outstanding.Add(-1)
			return nil, ErrResourceExhausted
		}
	}
	p.gets.Add(1)
	b := p.pool.Get().(*Block)
	b.reset()
	return b, nil
}

// Release returns a Block to the pool. It is idempotent: calling it
// twice on the same Block (or after Manager.FreeAll has released it)
// is a no-op the second time.
func (p *Pool) Release(b *Block) {
	if b == nil {
		return
	}
	if !b.markFreed() {
		return // already freed
	}
	p.puts.Add(1)
	if p.maxOutstanding > 0 {
		p.outstanding.Add(-1)
	}
	p.pool.Put(b)
}

// Warmup pre-allocates and immediately releases count blocks, so the
// pool is warm before traffic arrives. Grounded on
// shockwave/pkg/shockwave/buffer_pool.go's BufferPool.Warmup.
func (p *Pool) Warmup(count int) {
	blocks := make([]*Block, 0, count)
	for i := 0; i < count; i++ {
		b, err := p.Allocate()
		if err != nil {
			break
		}
		blocks = append(blocks, b)
	}
	for _, b := range blocks {
		p.Release(b)
	}
}

// Stats reports pool usage counters.
type Stats struct {
	Gets        uint64
	Puts        uint64
	Misses      uint64
	Outstanding int64
}

func (p *Pool) Stats() Stats {
	return Stats{
		Gets:        p.gets.Load(),
		Puts:        p.puts.Load(),
		Misses:      p.misses.Load(),
		Outstanding: p.outstanding.Load(),
	}
}

// Manager is the handle a connection holds for the lifetime of the
// accept-to-close turn. It wraps a Block obtained from a Pool and frees
// it exactly once on Close.
type Manager struct {
	pool  *Pool
	block *Block
}

// Allocate obtains one block from pool, per spec.md §4.1's
// allocate(pool, config) contract.
func Allocate(pool *Pool) (*Manager, error) {
	b, err := pool.Allocate()
	if err != nil {
		return nil, err
	}
	return &Manager{pool: pool, block: b}, nil
}

func (m *Manager) Block() *Block { return m.block }

// ZeroAll overwrites the entire block.
func (m *Manager) ZeroAll() { m.block.ZeroAll() }

// FreeAll returns the block to its pool. Idempotent.
func (m *Manager) FreeAll() { m.pool.Release(m.block) }
