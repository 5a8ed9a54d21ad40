package schema

import (
	"encoding/binary"
	"math"

	"github.com/dot5enko/blockpack/bits"
	"github.com/go-faster/errors"
)

var (
	ErrSizeOverflow   = errors.New("block size does not fit header width")
	ErrUnknownWidth   = errors.New("unknown header width")
	ErrHeaderTooShort = errors.New("block header too short")
)

// HeaderWidth is the byte width of each size field in a block header.
// It is fixed by the surrounding format; placeholder and final header are
// always written with the same width.
type HeaderWidth uint8

const (
	Width32 HeaderWidth = 4
	Width64 HeaderWidth = 8
)

const MaxHeaderSize = 2 * int(Width64)

func (w HeaderWidth) Valid() bool {
	return w == Width32 || w == Width64
}

// Size is the full header size in bytes.
func (w HeaderWidth) Size() int {
	return 2 * int(w)
}

func (w HeaderWidth) maxValue() uint64 {
	if w == Width32 {
		return math.MaxUint32
	}
	return math.MaxUint64
}

// BlockHeader sits in front of every compressed block:
//
//	rawSize        u32|u64 LE
//	compressedSize u32|u64 LE
type BlockHeader struct {
	RawSize        uint64
	CompressedSize uint64
}

func (header BlockHeader) WriteTo(bw *bits.BitWriter, width HeaderWidth) (int, error) {
	if !width.Valid() {
		return 0, errors.Wrapf(ErrUnknownWidth, "width %d", width)
	}

	limit := width.maxValue()
	if header.RawSize > limit || header.CompressedSize > limit {
		return 0, errors.Wrapf(ErrSizeOverflow, "raw %d, compressed %d, width %d", header.RawSize, header.CompressedSize, width)
	}

	start := bw.Position()

	var err error
	if width == Width32 {
		if err = bw.PutUint32(uint32(header.RawSize)); err == nil {
			err = bw.PutUint32(uint32(header.CompressedSize))
		}
	} else {
		if err = bw.PutUint64(header.RawSize); err == nil {
			err = bw.PutUint64(header.CompressedSize)
		}
	}
	if err != nil {
		return 0, err
	}

	return bw.Position() - start, nil
}

// Encode serializes the header into buf, which must hold width.Size() bytes.
func (header BlockHeader) Encode(buf []byte, width HeaderWidth) ([]byte, error) {
	bw := bits.NewEncodeBuffer(buf, binary.LittleEndian)
	n, err := header.WriteTo(&bw, width)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (header *BlockHeader) FromBytes(input []byte, width HeaderWidth) error {
	if !width.Valid() {
		return errors.Wrapf(ErrUnknownWidth, "width %d", width)
	}
	if len(input) < width.Size() {
		return errors.Wrapf(ErrHeaderTooShort, "have %d bytes, need %d", len(input), width.Size())
	}

	reader := bits.NewBinReader(input, binary.LittleEndian)

	if width == Width32 {
		raw, err := reader.ReadU32()
		if err != nil {
			return errors.Wrap(err, "unable to decode raw size")
		}
		compressed, err := reader.ReadU32()
		if err != nil {
			return errors.Wrap(err, "unable to decode compressed size")
		}
		header.RawSize, header.CompressedSize = uint64(raw), uint64(compressed)
		return nil
	}

	var err error
	if header.RawSize, err = reader.ReadU64(); err != nil {
		return errors.Wrap(err, "unable to decode raw size")
	}
	if header.CompressedSize, err = reader.ReadU64(); err != nil {
		return errors.Wrap(err, "unable to decode compressed size")
	}
	return nil
}
