package compression

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/pierrec/lz4/v4"
)

// Lz4Codec writes lz4 frames.
type Lz4Codec struct {
	level lz4.CompressionLevel
	zw    *lz4.Writer
}

func NewLz4Codec(level Level) *Lz4Codec {
	lzLevel := lz4.Level4
	switch level {
	case LevelFastest:
		lzLevel = lz4.Fast
	case LevelBest:
		lzLevel = lz4.Level9
	}
	return &Lz4Codec{level: lzLevel}
}

func (c *Lz4Codec) Method() Method { return MethodLZ4 }

func (c *Lz4Codec) Reset(dst io.Writer) error {
	if c.zw == nil {
		c.zw = lz4.NewWriter(dst)
	} else {
		c.zw.Reset(dst)
	}
	// level is applied on every reset, the writer is back in its initial state
	if err := c.zw.Apply(lz4.CompressionLevelOption(c.level)); err != nil {
		return errors.Wrap(err, "lz4 options")
	}
	return nil
}

func (c *Lz4Codec) Write(p []byte) (int, error) {
	if c.zw == nil {
		return 0, errors.New("lz4 codec used before reset")
	}
	return c.zw.Write(p)
}

func (c *Lz4Codec) Close() error {
	if c.zw == nil {
		return errors.New("lz4 codec used before reset")
	}
	return c.zw.Close()
}
