package schema

import (
	"encoding/binary"

	"github.com/dot5enko/blockpack/bits"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

const IndexEntrySize = 16 + 8 + 8 + 8

const FooterSize = 8 + 4 + 4

// IndexEntry records one finished block. Blocks that were aborted never get one.
type IndexEntry struct {
	Uid            uuid.UUID
	Start          uint64
	RawSize        uint64
	CompressedSize uint64
}

// End is the offset right after the block's compressed payload. ok is false
// when that offset does not fit a uint64.
func (entry IndexEntry) End(width HeaderWidth) (end uint64, ok bool) {
	payload := entry.Start + uint64(width.Size())
	if payload < entry.Start {
		return 0, false
	}
	end = payload + entry.CompressedSize
	if end < payload {
		return 0, false
	}
	return end, true
}

func (entry IndexEntry) WriteTo(bw *bits.BitWriter) (int, error) {
	start := bw.Position()

	if err := bw.PutUUID(entry.Uid); err != nil {
		return 0, err
	}
	for _, v := range [...]uint64{entry.Start, entry.RawSize, entry.CompressedSize} {
		if err := bw.PutUint64(v); err != nil {
			return 0, err
		}
	}

	return bw.Position() - start, nil
}

func (entry *IndexEntry) FromReader(reader *bits.BitsReader) (err error) {
	if entry.Uid, err = reader.ReadUUID(); err != nil {
		return errors.Wrap(err, "unable to decode index entry uid")
	}
	if entry.Start, err = reader.ReadU64(); err != nil {
		return errors.Wrap(err, "unable to decode index entry start")
	}
	if entry.RawSize, err = reader.ReadU64(); err != nil {
		return errors.Wrap(err, "unable to decode index entry raw size")
	}
	if entry.CompressedSize, err = reader.ReadU64(); err != nil {
		return errors.Wrap(err, "unable to decode index entry compressed size")
	}
	return nil
}

type Footer struct {
	IndexOffset uint64
	Blocks      uint32
}

func (footer Footer) WriteTo(bw *bits.BitWriter) (int, error) {
	start := bw.Position()

	if err := bw.PutUint64(footer.IndexOffset); err != nil {
		return 0, err
	}
	if err := bw.PutUint32(footer.Blocks); err != nil {
		return 0, err
	}
	if _, err := bw.Write(Magic[:]); err != nil {
		return 0, err
	}

	return bw.Position() - start, nil
}

func (footer *Footer) FromBytes(input []byte) (err error) {
	reader := bits.NewBinReader(input, binary.LittleEndian)

	if footer.IndexOffset, err = reader.ReadU64(); err != nil {
		return errors.Wrap(err, "unable to decode index offset")
	}
	if footer.Blocks, err = reader.ReadU32(); err != nil {
		return errors.Wrap(err, "unable to decode block count")
	}

	var magic [4]byte
	if err = reader.ReadBytes(4, magic[:]); err != nil {
		return errors.Wrap(err, "unable to decode footer magic")
	}
	if magic != Magic {
		return errors.Wrapf(ErrBadMagic, "footer magic %q", magic[:])
	}
	return nil
}
