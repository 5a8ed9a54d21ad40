package compression

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/klauspost/compress/zlib"
)

// ZlibCodec is the deflate codec, zlib framed.
type ZlibCodec struct {
	level int
	zw    *zlib.Writer
}

func NewZlibCodec(level Level) *ZlibCodec {
	zlevel := zlib.DefaultCompression
	switch level {
	case LevelFastest:
		zlevel = zlib.BestSpeed
	case LevelBest:
		zlevel = zlib.BestCompression
	}
	return &ZlibCodec{level: zlevel}
}

func (c *ZlibCodec) Method() Method { return MethodZlib }

func (c *ZlibCodec) Reset(dst io.Writer) error {
	if c.zw != nil {
		c.zw.Reset(dst)
		return nil
	}
	zw, err := zlib.NewWriterLevel(dst, c.level)
	if err != nil {
		return errors.Wrapf(err, "zlib level %d", c.level)
	}
	c.zw = zw
	return nil
}

func (c *ZlibCodec) Write(p []byte) (int, error) {
	if c.zw == nil {
		return 0, errors.New("zlib codec used before reset")
	}
	return c.zw.Write(p)
}

func (c *ZlibCodec) Close() error {
	if c.zw == nil {
		return errors.New("zlib codec used before reset")
	}
	return c.zw.Close()
}
