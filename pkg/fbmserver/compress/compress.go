// Package compress implements the pluggable streaming compressor
// contract between httpengine.ResponseWriter and the transport: one
// compressor sits in front of the connection's writer and turns
// Write/Flush/Close calls into framed, compressed output.
//
// The Go idiom for this — NewWriter(io.Writer) (io.WriteCloser, error) —
// is how every compression package in this stack already exposes
// itself (klauspost/compress's gzip/flate/zstd, andybalholm/brotli), so
// Compressor models that directly rather than reproducing a C-style
// consumed/written/needs_more_output state machine: Write absorbs
// "needs more output" internally by growing its own output buffer, and
// Flush/Close map onto the underlying stream's flush/close semantics.
package compress

import "io"

// Compressor constructs a compressing io.WriteCloser over w. Each call
// returns an independent writer; implementations are themselves
// stateless and safe for concurrent use.
type Compressor interface {
	// NewWriter wraps w so that bytes written to the result are
	// compressed before reaching w.
	NewWriter(w io.Writer) (io.WriteCloser, error)

	// Name is the value this compressor should be advertised as, e.g.
	// in Content-Encoding ("br", "gzip", "deflate", "zstd").
	Name() string
}

// Config selects which compressors are available and their default
// selection order when negotiating against Accept-Encoding.
type Config struct {
	// Preferred lists encoding names in order of preference.
	// NewDefaultRegistry does not read it: it always registers br, gzip,
	// deflate, zstd in that order, and Negotiate breaks q-value ties by
	// registration order.
	Preferred []string

	// BrotliQuality and BrotliWindow tune the default Brotli
	// compressor (spec.md §4.5: quality 9, window 24).
	BrotliQuality int
	BrotliWindow  int

	// GzipLevel tunes the default Gzip compressor.
	GzipLevel int

	// ZstdLevel tunes the default Zstd compressor.
	ZstdLevel int
}

// DefaultConfig returns the production defaults: Brotli preferred, then
// gzip, then deflate, then zstd, with quality/levels tuned for a balance of ratio
// and CPU cost suitable for a response hot path.
func DefaultConfig() Config {
	return Config{
		Preferred:     []string{"br", "gzip", "deflate", "zstd"},
		BrotliQuality: 9,
		BrotliWindow:  24,
		GzipLevel:     6,
		ZstdLevel:     3,
	}
}
