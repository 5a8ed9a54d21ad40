package manager

import (
	"encoding/binary"
	"log"
	"os"

	"github.com/dot5enko/blockpack/bits"
	"github.com/dot5enko/blockpack/block"
	"github.com/dot5enko/blockpack/compression"
	"github.com/dot5enko/blockpack/manager/cache"
	"github.com/dot5enko/blockpack/schema"
	"github.com/dot5enko/blockpack/stream"
	"github.com/fatih/color"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrWriterClosed = errors.New("writer closed")

// Writer lays out a container file: file header, blocks, index, footer.
// It decides when blocks start and end and keeps an index entry for every
// block that was finished. It is not safe for concurrent use.
type Writer struct {
	cfg WriterConfig

	file *os.File
	out  *stream.Stream

	blocks *block.Writer

	pool    *cache.FixedSizeBufferPool
	chunkId uint16

	current uuid.UUID
	index   []schema.IndexEntry

	closed bool

	scratch [schema.FileHeaderSize + schema.IndexEntrySize + schema.FooterSize]byte
}

// Create truncates path and starts a container in it.
func Create(path string, cfg WriterConfig, pool *cache.FixedSizeBufferPool) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	w, err := NewWriter(f, cfg, pool)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter starts a container at offset zero of sink. When pool is set the
// chunk buffer is taken from it and returned on Close, and the pool's buffer
// size overrides cfg.ChunkSize.
func NewWriter(sink stream.Sink, cfg WriterConfig, pool *cache.FixedSizeBufferPool) (*Writer, error) {
	return newWriter(sink, cfg, pool, nil)
}

func newWriter(sink stream.Sink, cfg WriterConfig, pool *cache.FixedSizeBufferPool, codec compression.StreamCodec) (*Writer, error) {
	if pool != nil {
		cfg.ChunkSize = pool.BufSize()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid writer config")
	}

	if codec == nil {
		var err error
		if codec, err = compression.NewCodec(cfg.Method, cfg.Level); err != nil {
			return nil, err
		}
	}

	w := &Writer{
		cfg:  cfg,
		out:  stream.New(sink, 0),
		pool: pool,
	}

	var chunk []byte
	if pool != nil {
		chunk, w.chunkId = pool.Get()
	} else {
		chunk = make([]byte, cfg.ChunkSize)
	}

	engine, err := compression.NewEngine(codec, chunk)
	if err == nil {
		w.blocks, err = block.NewWriter(w.out, engine, cfg.MaxBlockSize, cfg.HeaderWidth)
	}
	if err == nil {
		err = w.writeFileHeader()
	}
	if err != nil {
		w.releaseChunk()
		return nil, err
	}

	return w, nil
}

func (w *Writer) writeFileHeader() error {
	header := schema.FileHeader{
		Version:      schema.CurrentFileVersion,
		Method:       uint8(w.cfg.Method),
		HeaderWidth:  w.cfg.HeaderWidth,
		Level:        int8(w.cfg.Level),
		MaxBlockSize: uint32(w.cfg.MaxBlockSize),
		ChunkSize:    uint32(w.cfg.ChunkSize),
	}

	bw := bits.NewEncodeBuffer(w.scratch[:], binary.LittleEndian)
	if _, err := header.WriteTo(&bw); err != nil {
		return errors.Wrap(err, "unable to serialize file header")
	}
	_, err := w.out.Write(bw.Bytes())
	return err
}

func (w *Writer) Config() WriterConfig {
	return w.cfg
}

// Blocks returns the index entries of all finished blocks so far.
func (w *Writer) Blocks() []schema.IndexEntry {
	return w.index
}

// State is the state of the current block.
func (w *Writer) State() block.State {
	return w.blocks.State()
}

// StartBlock opens a new block and returns its uid.
func (w *Writer) StartBlock() (uuid.UUID, error) {
	if w.closed {
		return uuid.Nil, ErrWriterClosed
	}
	if w.blocks.State() == block.StateOpen {
		return uuid.Nil, block.ErrAlreadyOpen
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}

	if _, err := w.blocks.StartBlock(); err != nil {
		return uuid.Nil, w.blockFailed(err)
	}

	w.current = uid
	return uid, nil
}

// Write stages p into the current block, opening one if needed. Whenever
// staging fills up it is compressed, so any amount of input fits a block.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	switch w.blocks.State() {
	case block.StateFailed:
		return 0, w.blocks.Err()
	case block.StateIdle, block.StateClosed:
		if _, err := w.StartBlock(); err != nil {
			return 0, err
		}
	}

	staging := w.blocks.Staging()

	written := 0
	for len(p) > 0 {
		if staging.Free() == 0 {
			if err := w.blocks.Compress(); err != nil {
				return written, w.blockFailed(err)
			}
		}

		n := min(staging.Free(), len(p))
		if err := w.blocks.Stage(p[:n]); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

// Compress pushes the staged input of the open block through the compressor.
func (w *Writer) Compress() error {
	if err := w.blocks.Compress(); err != nil {
		return w.blockFailed(err)
	}
	return nil
}

// FinishBlock seals the open block and records it in the index.
func (w *Writer) FinishBlock() (schema.IndexEntry, error) {
	if w.closed {
		return schema.IndexEntry{}, ErrWriterClosed
	}

	info, err := w.blocks.Finish()
	if err != nil {
		return schema.IndexEntry{}, w.blockFailed(err)
	}

	entry := schema.IndexEntry{
		Uid:            w.current,
		Start:          uint64(info.Offset()),
		RawSize:        info.RawSize,
		CompressedSize: info.CompressedSize,
	}
	w.index = append(w.index, entry)

	if w.cfg.Verbose {
		ratio := 0.0
		if info.RawSize > 0 {
			ratio = float64(info.CompressedSize) / float64(info.RawSize) * 100
		}
		color.Yellow(" >> block %s [%s] @%d %d -> %d [%.2f%%]", entry.Uid, w.cfg.Method, entry.Start, info.RawSize, info.CompressedSize, ratio)
	}

	return entry, nil
}

// WriteBlock writes data as one complete block.
func (w *Writer) WriteBlock(data []byte) (schema.IndexEntry, error) {
	if _, err := w.StartBlock(); err != nil {
		return schema.IndexEntry{}, err
	}
	if _, err := w.Write(data); err != nil {
		return schema.IndexEntry{}, err
	}
	return w.FinishBlock()
}

// AbortBlock drops the open block. Its bytes stay in the file behind a
// zeroed header but it never gets an index entry.
func (w *Writer) AbortBlock() {
	if s := w.blocks.State(); s != block.StateOpen && s != block.StateFailed {
		return
	}
	if w.cfg.Verbose {
		log.Printf(" >> aborted block %s", w.current)
	}
	w.blocks.Abort()
	w.current = uuid.Nil
}

func (w *Writer) blockFailed(err error) error {
	if w.cfg.Verbose {
		color.Red(" >> block %s failed: %s", w.current, err.Error())
	}
	return err
}

// Close finishes an open block, writes the index and the footer and
// releases the chunk buffer. A block that failed is dropped, not finished.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	var topErr error

	if w.blocks.State() == block.StateOpen {
		if _, err := w.FinishBlock(); err != nil {
			topErr = err
		}
	}
	// blocks finished before a failure are still indexed
	w.AbortBlock()

	if err := w.writeIndex(); err != nil && topErr == nil {
		topErr = err
	}
	if err := w.out.Flush(); err != nil && topErr == nil {
		topErr = err
	}

	w.closed = true
	w.releaseChunk()

	if w.file != nil {
		if err := w.file.Close(); err != nil && topErr == nil {
			topErr = err
		}
	}
	return topErr
}

func (w *Writer) writeIndex() error {
	indexOffset := w.out.Tell()

	bw := bits.NewEncodeBuffer(w.scratch[:], binary.LittleEndian)
	for _, entry := range w.index {
		bw.Reset()
		if _, err := entry.WriteTo(&bw); err != nil {
			return errors.Wrap(err, "unable to serialize index entry")
		}
		if _, err := w.out.Write(bw.Bytes()); err != nil {
			return err
		}
	}

	bw.Reset()
	footer := schema.Footer{IndexOffset: uint64(indexOffset), Blocks: uint32(len(w.index))}
	if _, err := footer.WriteTo(&bw); err != nil {
		return errors.Wrap(err, "unable to serialize footer")
	}
	_, err := w.out.Write(bw.Bytes())
	return err
}

func (w *Writer) releaseChunk() {
	if w.pool == nil {
		return
	}
	w.pool.Return(w.chunkId)
	w.pool = nil
}
