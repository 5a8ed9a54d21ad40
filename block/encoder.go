package block

import (
	"io"

	"github.com/dot5enko/blockpack/compression"
)

// Encoder moves staged input through the compression engine and appends the
// resulting chunks to the output, keeping running totals for the open block.
type Encoder struct {
	staging *Staging
	engine  *compression.Engine
	out     io.Writer

	rawSize        uint64
	compressedSize uint64
}

func NewEncoder(staging *Staging, engine *compression.Engine, out io.Writer) *Encoder {
	return &Encoder{
		staging: staging,
		engine:  engine,
		out:     out,
	}
}

// Reset starts a new compressed stream with zeroed totals and empty staging.
func (e *Encoder) Reset() error {
	e.rawSize = 0
	e.compressedSize = 0
	e.staging.Reset()
	return e.engine.Reset()
}

// Compress drains staging into the compressor and writes every chunk it
// produced. The compressor may keep some output buffered.
func (e *Encoder) Compress() error {
	return e.feed(false)
}

// FinishCompression terminates the compressed stream, writes the remaining
// chunks and returns the final totals. Bytes still staged are compressed
// as part of the final feed.
func (e *Encoder) FinishCompression() (rawSize, compressedSize uint64, err error) {
	if err := e.feed(true); err != nil {
		return 0, 0, err
	}
	return e.rawSize, e.compressedSize, nil
}

func (e *Encoder) feed(final bool) error {
	input := e.staging.Drain()
	if err := e.engine.Feed(input, final, e.writeChunk); err != nil {
		return err
	}
	e.rawSize += uint64(len(input))
	return nil
}

func (e *Encoder) writeChunk(chunk []byte) error {
	n, err := e.out.Write(chunk)
	e.compressedSize += uint64(n)
	return err
}

// Totals are the running sizes of the open block.
func (e *Encoder) Totals() (rawSize, compressedSize uint64) {
	return e.rawSize, e.compressedSize
}
