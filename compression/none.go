package compression

import (
	"io"

	"github.com/go-faster/errors"
)

// NoneCodec passes input through unchanged.
type NoneCodec struct {
	dst io.Writer
}

func (c *NoneCodec) Method() Method { return MethodNone }

func (c *NoneCodec) Reset(dst io.Writer) error {
	c.dst = dst
	return nil
}

func (c *NoneCodec) Write(p []byte) (int, error) {
	if c.dst == nil {
		return 0, errors.New("none codec used before reset")
	}
	return c.dst.Write(p)
}

func (c *NoneCodec) Close() error {
	return nil
}
