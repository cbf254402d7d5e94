package compress

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// Zstd wraps klauspost/compress/zstd, offered for clients that
// advertise "zstd" in Accept-Encoding.
type Zstd struct {
	Level zstd.EncoderLevel
}

// NewZstd builds a Zstd compressor at the given encoder level (1-4,
// see zstd.SpeedFastest..zstd.SpeedBestCompression); 0 means
// zstd.SpeedDefault.
func NewZstd(level int) *Zstd {
	lvl := zstd.EncoderLevel(level)
	if level == 0 {
		lvl = zstd.SpeedDefault
	}
	return &Zstd{Level: lvl}
}

func (z *Zstd) Name() string { return "zstd" }

func (z *Zstd) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(z.Level))
}
