package compress

import (
	"io"

	"github.com/andybalholm/brotli"
)

// Brotli is the default Compressor (spec.md §4.5), wrapping
// andybalholm/brotli at a fixed quality/window.
type Brotli struct {
	Quality int
	Window  int
}

// NewBrotli builds a Brotli compressor at the given quality (0-11) and
// window size (10-24, log2 of the window in bytes).
func NewBrotli(quality, window int) *Brotli {
	return &Brotli{Quality: quality, Window: window}
}

func (b *Brotli) Name() string { return "br" }

func (b *Brotli) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return brotli.NewWriterOptions(w, brotli.WriterOptions{
		Quality: b.Quality,
		LGWin:   b.Window,
	}), nil
}
