// Package stream is the little-endian output stream blocks are written to.
//
// A Stream only ever grows through its append side. Going back to an earlier
// position is a separate capability, the Patcher, which can overwrite bytes
// that were already appended but never extend the stream.
package stream

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/go-faster/errors"
)

var (
	ErrStaleMarker    = errors.New("marker belongs to a previous stream generation")
	ErrPatchBeyondEnd = errors.New("patch would grow the stream")
)

// Sink is the storage a Stream appends to and patches.
// *os.File and *Buffer satisfy it.
type Sink interface {
	io.Writer
	io.WriterAt
}

// Marker is an opaque position token returned by Stream.Mark.
type Marker struct {
	pos        int64
	generation uint64
}

func (m Marker) Offset() int64 {
	return m.pos
}

type Stream struct {
	sink Sink
	w    *bufio.Writer

	pos        int64
	generation uint64

	order   binary.ByteOrder
	scratch [8]byte
}

const defaultBufferSize = 64 * 1024

// New returns a stream appending to sink. base is the sink's current write
// offset, zero for a freshly truncated file.
func New(sink Sink, base int64) *Stream {
	return &Stream{
		sink:  sink,
		w:     bufio.NewWriterSize(sink, defaultBufferSize),
		pos:   base,
		order: binary.LittleEndian,
	}
}

// Tell returns the append position.
func (s *Stream) Tell() int64 {
	return s.pos
}

func (s *Stream) Mark() Marker {
	return Marker{pos: s.pos, generation: s.generation}
}

func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.pos += int64(n)
	return n, err
}

func (s *Stream) WriteByte(v byte) error {
	if err := s.w.WriteByte(v); err != nil {
		return err
	}
	s.pos++
	return nil
}

func (s *Stream) PutUint16(v uint16) error {
	s.order.PutUint16(s.scratch[:2], v)
	_, err := s.Write(s.scratch[:2])
	return err
}

func (s *Stream) PutUint32(v uint32) error {
	s.order.PutUint32(s.scratch[:4], v)
	_, err := s.Write(s.scratch[:4])
	return err
}

func (s *Stream) PutUint64(v uint64) error {
	s.order.PutUint64(s.scratch[:8], v)
	_, err := s.Write(s.scratch[:8])
	return err
}

// Flush pushes buffered appends to the sink.
func (s *Stream) Flush() error {
	return s.w.Flush()
}

// Reset flushes and re-bases the stream at base. Markers taken before the
// reset are rejected by the patcher afterwards.
func (s *Stream) Reset(base int64) error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	s.pos = base
	s.generation++
	return nil
}

func (s *Stream) Patcher() Patcher {
	return Patcher{s: s}
}

// Patcher overwrites already appended bytes.
type Patcher struct {
	s *Stream
}

// WriteAt writes p at m. Pending appends are flushed first so the patch can
// not be overwritten by bytes still sitting in the append buffer. The append
// position is left untouched.
func (p Patcher) WriteAt(m Marker, data []byte) error {
	s := p.s
	if m.generation != s.generation {
		return errors.Wrapf(ErrStaleMarker, "marker at %d", m.pos)
	}
	if m.pos+int64(len(data)) > s.pos {
		return errors.Wrapf(ErrPatchBeyondEnd, "patch [%d,%d) past end %d", m.pos, m.pos+int64(len(data)), s.pos)
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	n, err := s.sink.WriteAt(data, m.pos)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return nil
}
