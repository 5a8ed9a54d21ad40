// Package compressiontest has helpers for tests that need to look inside
// compressed payloads or make a compressor fail on purpose.
package compressiontest

import (
	"bytes"
	"io"

	"github.com/dot5enko/blockpack/compression"
	"github.com/go-faster/errors"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Inflate decompresses a full payload written with method.
func Inflate(method compression.Method, payload []byte) ([]byte, error) {
	src := bytes.NewReader(payload)

	switch method {
	case compression.MethodNone:
		return bytes.Clone(payload), nil
	case compression.MethodZlib:
		zr, err := zlib.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case compression.MethodLZ4:
		return io.ReadAll(lz4.NewReader(src))
	case compression.MethodZstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return io.ReadAll(dec)
	}
	return nil, errors.Errorf("no decompressor for %s", method)
}

var ErrInjected = errors.New("injected compressor failure")

// FaultyCodec wraps a codec and fails once FailAfter input bytes went
// through it, or on Close when FailOnClose is set.
type FaultyCodec struct {
	compression.StreamCodec

	FailAfter   int
	FailOnClose bool

	seen int
}

func (c *FaultyCodec) Reset(dst io.Writer) error {
	c.seen = 0
	return c.StreamCodec.Reset(dst)
}

func (c *FaultyCodec) Write(p []byte) (int, error) {
	if c.FailAfter > 0 && c.seen+len(p) > c.FailAfter {
		return 0, ErrInjected
	}
	c.seen += len(p)
	return c.StreamCodec.Write(p)
}

func (c *FaultyCodec) Close() error {
	if c.FailOnClose {
		return ErrInjected
	}
	return c.StreamCodec.Close()
}
