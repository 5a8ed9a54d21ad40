package schema

import (
	"encoding/binary"

	"github.com/dot5enko/blockpack/bits"
	"github.com/go-faster/errors"
)

// container file
//
// *--------------------------------*
// | file header (18 bytes)         |
// *--------------------------------*
// | block header | payload         |
// | ...                            |
// *--------------------------------*
// | index entries (40 bytes each)  |
// *--------------------------------*
// | footer (16 bytes)              |
// *--------------------------------*

const CurrentFileVersion = 1

var Magic = [4]byte{'B', 'L', 'K', 'P'}

const FileHeaderSize = 4 + 2 + 1 + 1 + 1 + 1 + 4 + 4

var (
	ErrBadMagic   = errors.New("bad magic")
	ErrBadVersion = errors.New("unsupported version")
)

type FileHeader struct {
	Version      uint16
	Method       uint8
	HeaderWidth  HeaderWidth
	Level        int8
	MaxBlockSize uint32
	ChunkSize    uint32
}

func (header FileHeader) WriteTo(bw *bits.BitWriter) (int, error) {
	start := bw.Position()

	if _, err := bw.Write(Magic[:]); err != nil {
		return 0, err
	}
	if err := bw.PutUint16(header.Version); err != nil {
		return 0, err
	}
	if err := bw.WriteByte(header.Method); err != nil {
		return 0, err
	}
	if err := bw.WriteByte(uint8(header.HeaderWidth)); err != nil {
		return 0, err
	}
	if err := bw.PutInt8(header.Level); err != nil {
		return 0, err
	}
	// reserved
	if err := bw.WriteByte(0); err != nil {
		return 0, err
	}
	if err := bw.PutUint32(header.MaxBlockSize); err != nil {
		return 0, err
	}
	if err := bw.PutUint32(header.ChunkSize); err != nil {
		return 0, err
	}

	return bw.Position() - start, nil
}

func (header *FileHeader) FromBytes(input []byte) error {
	reader := bits.NewBinReader(input, binary.LittleEndian)

	var magic [4]byte
	if err := reader.ReadBytes(4, magic[:]); err != nil {
		return errors.Wrap(err, "unable to read magic")
	}
	if magic != Magic {
		return errors.Wrapf(ErrBadMagic, "got %q", magic[:])
	}

	var err error
	if header.Version, err = reader.ReadU16(); err != nil {
		return errors.Wrap(err, "unable to read version")
	}
	if header.Version != CurrentFileVersion {
		return errors.Wrapf(ErrBadVersion, "version %d, supported %d", header.Version, CurrentFileVersion)
	}
	if header.Method, err = reader.ReadU8(); err != nil {
		return errors.Wrap(err, "unable to read method")
	}

	width, err := reader.ReadU8()
	if err != nil {
		return errors.Wrap(err, "unable to read header width")
	}
	header.HeaderWidth = HeaderWidth(width)
	if !header.HeaderWidth.Valid() {
		return errors.Wrapf(ErrUnknownWidth, "width %d", width)
	}

	if header.Level, err = reader.ReadI8(); err != nil {
		return errors.Wrap(err, "unable to read level")
	}
	if _, err = reader.ReadU8(); err != nil {
		return err
	}
	if header.MaxBlockSize, err = reader.ReadU32(); err != nil {
		return errors.Wrap(err, "unable to read max block size")
	}
	if header.ChunkSize, err = reader.ReadU32(); err != nil {
		return errors.Wrap(err, "unable to read chunk size")
	}

	return nil
}
