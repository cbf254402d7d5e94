package compress

import (
	"strings"
	"sync"
)

// Registry holds the set of Compressors available for negotiation
// against a request's Accept-Encoding header, supporting spec.md §9's
// "dynamic compressor plugin" design note: a caller can Register a new
// encoding at runtime without touching the negotiation code.
type Registry struct {
	mu    sync.RWMutex
	byName map[string]Compressor
	order  []string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Compressor)}
}

// NewDefaultRegistry builds a Registry pre-populated with Brotli, Gzip,
// Deflate, and Zstd tuned from cfg.
func NewDefaultRegistry(cfg Config) *Registry {
	r := NewRegistry()
	r.Register(NewBrotli(cfg.BrotliQuality, cfg.BrotliWindow))
	r.Register(NewGzip(cfg.GzipLevel))
	r.Register(NewDeflate(0))
	r.Register(NewZstd(cfg.ZstdLevel))
	return r
}

// Register adds (or replaces) a Compressor under its Name().
func (r *Registry) Register(c Compressor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = c
}

// Get returns the Compressor registered under name, if any.
func (r *Registry) Get(name string) (Compressor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// Negotiate picks the best Compressor for an Accept-Encoding header
// value, honoring q-values and falling back to registration order
// (which NewDefaultRegistry seeds as br, gzip, deflate, zstd) when
// several encodings tie. Returns false if nothing in acceptEncoding
// matches a registered compressor, or if the client only accepts
// "identity"/"*;q=0" explicitly.
func (r *Registry) Negotiate(acceptEncoding string) (Compressor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if acceptEncoding == "" {
		return nil, false
	}

	type candidate struct {
		name string
		q    float64
	}
	var candidates []candidate

	for _, part := range strings.Split(acceptEncoding, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		q := 1.0
		if idx := strings.IndexByte(part, ';'); idx != -1 {
			name = strings.TrimSpace(part[:idx])
			if qv, ok := parseQValue(part[idx+1:]); ok {
				q = qv
			}
		}
		name = strings.ToLower(name)
		if _, ok := r.byName[name]; !ok {
			continue
		}
		if q <= 0 {
			continue
		}
		candidates = append(candidates, candidate{name: name, q: q})
	}

	if len(candidates) == 0 {
		return nil, false
	}

	best := candidates[0]
	bestRank := r.rank(best.name)
	for _, c := range candidates[1:] {
		if c.q > best.q || (c.q == best.q && r.rank(c.name) < bestRank) {
			best = c
			bestRank = r.rank(c.name)
		}
	}
	return r.byName[best.name], true
}

func (r *Registry) rank(name string) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return len(r.order)
}

func parseQValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "q=") {
		return 0, false
	}
	s = s[2:]
	var whole, frac, fracDiv int64 = 0, 0, 1
	seenDot := false
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			if seenDot {
				frac = frac*10 + int64(c-'0')
				fracDiv *= 10
			} else {
				whole = whole*10 + int64(c-'0')
			}
		case c == '.':
			seenDot = true
		default:
			return 0, false
		}
	}
	return float64(whole) + float64(frac)/float64(fracDiv), true
}
