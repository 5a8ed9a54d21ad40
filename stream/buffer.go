package stream

import (
	"github.com/go-faster/errors"
)

// Buffer is an in-memory Sink.
type Buffer struct {
	data []byte
	pos  int
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.grow(b.pos + len(p))
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

// WriteAt writes p at off without moving the append offset. Writing past
// the end zero-fills the gap like a file would.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.Errorf("negative offset %d", off)
	}
	end := int(off) + len(p)
	b.grow(end)
	return copy(b.data[off:], p), nil
}

func (b *Buffer) grow(size int) {
	if size <= len(b.data) {
		return
	}
	if size <= cap(b.data) {
		b.data = b.data[:size]
		return
	}
	next := make([]byte, size, max(size, 2*cap(b.data)))
	copy(next, b.data)
	b.data = next
}

func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) Len() int {
	return len(b.data)
}
