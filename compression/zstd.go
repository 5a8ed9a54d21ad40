package compression

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/klauspost/compress/zstd"
)

// ZstdCodec writes zstd frames. The encoder runs with concurrency 1 so every
// Write is encoded on the caller's goroutine.
type ZstdCodec struct {
	enc *zstd.Encoder
}

func NewZstdCodec(level Level) (*ZstdCodec, error) {
	zlevel := zstd.SpeedDefault
	switch level {
	case LevelFastest:
		zlevel = zstd.SpeedFastest
	case LevelBest:
		zlevel = zstd.SpeedBestCompression
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zlevel),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	return &ZstdCodec{enc: enc}, nil
}

func (c *ZstdCodec) Method() Method { return MethodZstd }

func (c *ZstdCodec) Reset(dst io.Writer) error {
	c.enc.Reset(dst)
	return nil
}

func (c *ZstdCodec) Write(p []byte) (int, error) {
	return c.enc.Write(p)
}

func (c *ZstdCodec) Close() error {
	return c.enc.Close()
}
