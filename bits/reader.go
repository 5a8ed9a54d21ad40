package bits

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrReadMismatch = errors.New("read size mismatch")

const maxReadBufferSize = 16

type BitsReader struct {
	readBuffer [maxReadBufferSize]byte

	buf   io.Reader
	order binary.ByteOrder
}

func NewReader(buf io.Reader, order binary.ByteOrder) *BitsReader {
	return &BitsReader{buf: buf, order: order}
}

func NewBinReader(input []byte, order binary.ByteOrder) *BitsReader {
	return NewReader(bytes.NewReader(input), order)
}

func (r *BitsReader) fill(size int) error {
	_, err := io.ReadFull(r.buf, r.readBuffer[:size])
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrReadMismatch, "want %d bytes", size)
	}
	return err
}

func (r *BitsReader) ReadU8() (uint8, error) {
	if err := r.fill(1); err != nil {
		return 0, err
	}
	return r.readBuffer[0], nil
}

func (r *BitsReader) ReadI8() (int8, error) {
	u, err := r.ReadU8()
	return int8(u), err
}

func (r *BitsReader) ReadU16() (uint16, error) {
	if err := r.fill(2); err != nil {
		return 0, err
	}
	return r.order.Uint16(r.readBuffer[:2]), nil
}

func (r *BitsReader) ReadU32() (uint32, error) {
	if err := r.fill(4); err != nil {
		return 0, err
	}
	return r.order.Uint32(r.readBuffer[:4]), nil
}

func (r *BitsReader) ReadU64() (uint64, error) {
	if err := r.fill(8); err != nil {
		return 0, err
	}
	return r.order.Uint64(r.readBuffer[:8]), nil
}

func (r *BitsReader) ReadUUID() (result uuid.UUID, err error) {
	err = r.ReadBytes(16, result[:])
	return result, err
}

func (r *BitsReader) ReadBytes(n int, out []byte) error {
	_, err := io.ReadFull(r.buf, out[:n])
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrReadMismatch, "want %d bytes", n)
	}
	return err
}
