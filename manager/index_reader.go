package manager

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/dot5enko/blockpack/bits"
	"github.com/dot5enko/blockpack/compression"
	"github.com/dot5enko/blockpack/schema"
	"github.com/go-faster/errors"
)

var ErrCorruptIndex = errors.New("corrupt index")

// Index is the table of contents of a container file.
type Index struct {
	Header  schema.FileHeader
	Footer  schema.Footer
	Entries []schema.IndexEntry
}

func (idx *Index) Method() compression.Method {
	return compression.Method(idx.Header.Method)
}

// TotalRaw is the sum of the raw sizes of all indexed blocks.
func (idx *Index) TotalRaw() (total uint64) {
	for _, entry := range idx.Entries {
		total += entry.RawSize
	}
	return total
}

func (idx *Index) TotalCompressed() (total uint64) {
	for _, entry := range idx.Entries {
		total += entry.CompressedSize
	}
	return total
}

// Payload reads the compressed payload of block i.
func (idx *Index) Payload(r io.ReaderAt, i int) ([]byte, error) {
	if i < 0 || i >= len(idx.Entries) {
		return nil, errors.Errorf("block %d out of range [0, %d)", i, len(idx.Entries))
	}
	entry := idx.Entries[i]

	if end, ok := entry.End(idx.Header.HeaderWidth); !ok || end > idx.Footer.IndexOffset {
		return nil, errors.Wrapf(ErrCorruptIndex, "block %d payload of %d bytes runs past the index", i, entry.CompressedSize)
	}

	payload := make([]byte, entry.CompressedSize)
	offset := int64(entry.Start) + int64(idx.Header.HeaderWidth.Size())
	if _, err := r.ReadAt(payload, offset); err != nil {
		return nil, errors.Wrapf(err, "unable to read payload of block %s", entry.Uid)
	}
	return payload, nil
}

// OpenIndex reads and verifies the index of the container at path.
func OpenIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return ReadIndex(f, st.Size())
}

// ReadIndex reads the index of a container of the given size. Every indexed
// block's header is read back and has to agree with its index entry.
func ReadIndex(r io.ReaderAt, size int64) (*Index, error) {
	if size < schema.FileHeaderSize+schema.FooterSize {
		return nil, errors.Wrapf(ErrCorruptIndex, "file of %d bytes is too short", size)
	}

	idx := &Index{}

	var fixed [schema.FileHeaderSize]byte
	if _, err := r.ReadAt(fixed[:], 0); err != nil {
		return nil, errors.Wrap(err, "unable to read file header")
	}
	if err := idx.Header.FromBytes(fixed[:]); err != nil {
		return nil, err
	}

	var footer [schema.FooterSize]byte
	footerOffset := size - schema.FooterSize
	if _, err := r.ReadAt(footer[:], footerOffset); err != nil {
		return nil, errors.Wrap(err, "unable to read footer")
	}
	if err := idx.Footer.FromBytes(footer[:]); err != nil {
		return nil, err
	}

	indexLen := int64(idx.Footer.Blocks) * schema.IndexEntrySize
	if idx.Footer.IndexOffset < schema.FileHeaderSize || idx.Footer.IndexOffset > uint64(footerOffset) ||
		int64(idx.Footer.IndexOffset)+indexLen != footerOffset {
		return nil, errors.Wrapf(ErrCorruptIndex, "index of %d entries at %d does not end at footer %d",
			idx.Footer.Blocks, idx.Footer.IndexOffset, footerOffset)
	}

	reader := bits.NewReader(io.NewSectionReader(r, int64(idx.Footer.IndexOffset), indexLen), binary.LittleEndian)
	idx.Entries = make([]schema.IndexEntry, idx.Footer.Blocks)
	for i := range idx.Entries {
		if err := idx.Entries[i].FromReader(reader); err != nil {
			return nil, errors.Wrapf(err, "index entry %d", i)
		}
	}

	if err := idx.verify(r); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) verify(r io.ReaderAt) error {
	width := idx.Header.HeaderWidth

	buf := make([]byte, width.Size())
	prevEnd := uint64(schema.FileHeaderSize)

	for i, entry := range idx.Entries {
		end, ok := entry.End(width)
		if !ok {
			return errors.Wrapf(ErrCorruptIndex, "block %d at %d: compressed size %d overflows", i, entry.Start, entry.CompressedSize)
		}
		if entry.Start < prevEnd || end > idx.Footer.IndexOffset {
			return errors.Wrapf(ErrCorruptIndex, "block %d [%d, %d) overlaps its neighbours", i, entry.Start, end)
		}
		prevEnd = end

		if _, err := r.ReadAt(buf, int64(entry.Start)); err != nil {
			return errors.Wrapf(err, "unable to read header of block %d", i)
		}

		var header schema.BlockHeader
		if err := header.FromBytes(buf, width); err != nil {
			return errors.Wrapf(err, "block %d", i)
		}
		if header.RawSize != entry.RawSize || header.CompressedSize != entry.CompressedSize {
			return errors.Wrapf(ErrCorruptIndex, "block %d header %d/%d, index %d/%d", i,
				header.RawSize, header.CompressedSize, entry.RawSize, entry.CompressedSize)
		}
	}
	return nil
}
