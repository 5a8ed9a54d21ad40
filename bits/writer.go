package bits

import (
	"encoding/binary"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNoSpace = errors.New("not enough space in encode buffer")

// BitWriter encodes fixed-width values into a caller owned buffer.
// Unless growing is enabled the buffer is never reallocated and any write
// that does not fit fails with ErrNoSpace, leaving the position unchanged.
type BitWriter struct {
	pos   int
	data  []byte
	order binary.ByteOrder

	growingEnabled bool
}

func NewEncodeBuffer(buf []byte, order binary.ByteOrder) BitWriter {
	return BitWriter{
		data:  buf,
		order: order,
	}
}

func (w *BitWriter) EnableGrowing() {
	w.growingEnabled = true
}

func (w *BitWriter) Reset() {
	w.pos = 0
}

func (w *BitWriter) Position() int {
	return w.pos
}

func (w *BitWriter) Bytes() []byte {
	return w.data[:w.pos]
}

func (w *BitWriter) grow(atLeast int) {
	newSize := len(w.data) * 2
	if w.pos+atLeast > newSize {
		newSize = w.pos + atLeast
	}

	newBuf := make([]byte, newSize)
	copy(newBuf, w.data[:w.pos])
	w.data = newBuf
}

func (w *BitWriter) reserve(n int) error {
	if w.pos+n <= len(w.data) {
		return nil
	}
	if !w.growingEnabled {
		return errors.Wrapf(ErrNoSpace, "pos %d, need %d, size %d", w.pos, n, len(w.data))
	}
	w.grow(n)
	return nil
}

func (w *BitWriter) Write(p []byte) (int, error) {
	if err := w.reserve(len(p)); err != nil {
		return 0, err
	}
	n := copy(w.data[w.pos:], p)
	w.pos += n
	return n, nil
}

// EmptyBytes writes n zero bytes.
func (w *BitWriter) EmptyBytes(n int) error {
	if err := w.reserve(n); err != nil {
		return err
	}
	clear(w.data[w.pos : w.pos+n])
	w.pos += n
	return nil
}

func (w *BitWriter) WriteByte(v byte) error {
	if err := w.reserve(1); err != nil {
		return err
	}
	w.data[w.pos] = v
	w.pos++
	return nil
}

func (w *BitWriter) PutUint16(v uint16) error {
	if err := w.reserve(2); err != nil {
		return err
	}
	w.order.PutUint16(w.data[w.pos:], v)
	w.pos += 2
	return nil
}

func (w *BitWriter) PutUint32(v uint32) error {
	if err := w.reserve(4); err != nil {
		return err
	}
	w.order.PutUint32(w.data[w.pos:], v)
	w.pos += 4
	return nil
}

func (w *BitWriter) PutUint64(v uint64) error {
	if err := w.reserve(8); err != nil {
		return err
	}
	w.order.PutUint64(w.data[w.pos:], v)
	w.pos += 8
	return nil
}

func (w *BitWriter) PutInt8(v int8) error {
	return w.WriteByte(byte(v))
}

func (w *BitWriter) PutUUID(id uuid.UUID) error {
	_, err := w.Write(id[:])
	return err
}
