package compress

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// Gzip wraps klauspost/compress/gzip, a drop-in but notably faster
// replacement for the standard library's compress/gzip.
type Gzip struct {
	Level int
}

// NewGzip builds a Gzip compressor at the given level (gzip.NoCompression
// through gzip.BestCompression); 0 means gzip.DefaultCompression.
func NewGzip(level int) *Gzip {
	return &Gzip{Level: level}
}

func (g *Gzip) Name() string { return "gzip" }

func (g *Gzip) NewWriter(w io.Writer) (io.WriteCloser, error) {
	level := g.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return gzip.NewWriterLevel(w, level)
}
