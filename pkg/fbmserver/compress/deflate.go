package compress

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// Deflate wraps klauspost/compress/flate for raw DEFLATE encoding
// (Content-Encoding: deflate).
type Deflate struct {
	Level int
}

// NewDeflate builds a Deflate compressor at the given level; 0 means
// flate.DefaultCompression.
func NewDeflate(level int) *Deflate {
	return &Deflate{Level: level}
}

func (d *Deflate) Name() string { return "deflate" }

func (d *Deflate) NewWriter(w io.Writer) (io.WriteCloser, error) {
	level := d.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	return flate.NewWriter(w, level)
}
