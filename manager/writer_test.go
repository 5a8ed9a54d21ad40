package manager

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dot5enko/blockpack/block"
	"github.com/dot5enko/blockpack/compression"
	"github.com/dot5enko/blockpack/compression/compressiontest"
	"github.com/dot5enko/blockpack/manager/cache"
	"github.com/dot5enko/blockpack/schema"
	"github.com/dot5enko/blockpack/stream"
	"github.com/fatih/color"
)

func testConfig(method compression.Method) WriterConfig {
	cfg := DefaultWriterConfig()
	cfg.Method = method
	cfg.ChunkSize = 1024
	cfg.MaxBlockSize = 4096
	return cfg
}

func payload(size int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte('0' + rng.Intn(10))
	}
	return out
}

func readBack(t *testing.T, data []byte) (*Index, [][]byte) {
	t.Helper()

	r := bytes.NewReader(data)
	idx, err := ReadIndex(r, int64(len(data)))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}

	blocks := make([][]byte, len(idx.Entries))
	for i := range idx.Entries {
		compressed, err := idx.Payload(r, i)
		if err != nil {
			t.Fatal(err)
		}
		if blocks[i], err = compressiontest.Inflate(idx.Method(), compressed); err != nil {
			t.Fatalf("inflate block %d: %v", i, err)
		}
		if uint64(len(blocks[i])) != idx.Entries[i].RawSize {
			t.Errorf("block %d inflated to %d bytes, index says %d", i, len(blocks[i]), idx.Entries[i].RawSize)
		}
	}
	return idx, blocks
}

func TestContainerRoundTrip(t *testing.T) {
	methods := []compression.Method{compression.MethodNone, compression.MethodZlib, compression.MethodLZ4, compression.MethodZstd}

	for _, method := range methods {
		t.Run(method.String(), func(t *testing.T) {
			buf := stream.NewBuffer(0)
			w, err := NewWriter(buf, testConfig(method), nil)
			if err != nil {
				t.Fatal(err)
			}

			inputs := [][]byte{payload(3000, 1), nil, payload(100, 2), payload(4096, 3)}
			for _, in := range inputs {
				if _, err := w.WriteBlock(in); err != nil {
					t.Fatal(err)
				}
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}

			idx, blocks := readBack(t, buf.Bytes())
			if idx.Method() != method {
				t.Errorf("file header method %s", idx.Method())
			}
			if len(blocks) != len(inputs) {
				t.Fatalf("%d blocks indexed, wrote %d", len(blocks), len(inputs))
			}
			for i := range inputs {
				if !bytes.Equal(blocks[i], inputs[i]) {
					t.Errorf("block %d differs", i)
				}
			}
			if idx.TotalRaw() != 3000+100+4096 {
				t.Errorf("total raw %d", idx.TotalRaw())
			}
		})
	}
}

func TestWriteLargerThanStaging(t *testing.T) {
	buf := stream.NewBuffer(0)
	w, err := NewWriter(buf, testConfig(compression.MethodZlib), nil)
	if err != nil {
		t.Fatal(err)
	}

	in := payload(50000, 7)
	n, err := w.Write(in)
	if err != nil || n != len(in) {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	_, blocks := readBack(t, buf.Bytes())
	if len(blocks) != 1 {
		t.Fatalf("expected one block, got %d", len(blocks))
	}
	if !bytes.Equal(blocks[0], in) {
		t.Errorf("block content differs")
	}
}

func TestFailedBlockIsNotIndexed(t *testing.T) {
	cfg := testConfig(compression.MethodZlib)
	faulty := &compressiontest.FaultyCodec{
		StreamCodec: compression.NewZlibCodec(cfg.Level),
		FailAfter:   3000,
	}

	buf := stream.NewBuffer(0)
	w, err := newWriter(buf, cfg, nil, faulty)
	if err != nil {
		t.Fatal(err)
	}

	first := payload(2000, 1)
	if _, err := w.WriteBlock(first); err != nil {
		t.Fatal(err)
	}

	// the codec is reset per block, only the larger block trips it
	_, err = w.WriteBlock(payload(4000, 2))
	if !errors.Is(err, compression.ErrCompressionFault) {
		t.Fatalf("expected compression fault, got %v", err)
	}
	if w.State() != block.StateFailed {
		t.Fatalf("state %s after fault", w.State())
	}
	if _, err := w.Write([]byte("more")); err == nil {
		t.Errorf("write into a failed block succeeded")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close after a failed block: %v", err)
	}

	idx, blocks := readBack(t, buf.Bytes())
	if len(idx.Entries) != 1 || !bytes.Equal(blocks[0], first) {
		t.Fatalf("expected only the first block indexed, got %d", len(idx.Entries))
	}
}

func TestFileWithPool(t *testing.T) {
	pool := cache.NewFixedSizeBufferPool(2, 2048)
	path := filepath.Join(t.TempDir(), "out.blkp")

	w, err := Create(path, testConfig(compression.MethodLZ4), pool)
	if err != nil {
		t.Fatal(err)
	}
	if pool.Available() != 1 {
		t.Errorf("writer did not take a chunk from the pool")
	}
	if w.Config().ChunkSize != 2048 {
		t.Errorf("chunk size %d, want the pool's", w.Config().ChunkSize)
	}

	in := payload(10000, 5)
	if _, err := w.WriteBlock(in); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if pool.Available() != 2 {
		t.Errorf("chunk not returned to the pool")
	}
	if _, err := w.StartBlock(); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("start after close: %v", err)
	}

	idx, err := OpenIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Entries) != 1 || idx.Entries[0].RawSize != uint64(len(in)) {
		t.Errorf("unexpected index %+v", idx.Entries)
	}
	if idx.Header.ChunkSize != 2048 {
		t.Errorf("file header chunk size %d", idx.Header.ChunkSize)
	}
}

func TestReadIndexDetectsCorruption(t *testing.T) {
	buf := stream.NewBuffer(0)
	w, err := NewWriter(buf, testConfig(compression.MethodZlib), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteBlock(payload(1000, 1)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data := bytes.Clone(buf.Bytes())
	// raw size field of the first block header
	data[schema.FileHeaderSize] ^= 0xff

	if _, err := ReadIndex(bytes.NewReader(data), int64(len(data))); !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("expected ErrCorruptIndex, got %v", err)
	}

	truncated := buf.Bytes()[:len(buf.Bytes())-1]
	if _, err := ReadIndex(bytes.NewReader(truncated), int64(len(truncated))); err == nil {
		t.Errorf("truncated file accepted")
	}
}

func TestReadIndexRejectsWrappingSize(t *testing.T) {
	cfg := testConfig(compression.MethodZlib)
	cfg.HeaderWidth = schema.Width64

	buf := stream.NewBuffer(0)
	w, err := NewWriter(buf, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.WriteBlock(payload(1000, 1)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// same size in the block header and the index entry so they still agree
	const forged = math.MaxUint64 - 4
	data := bytes.Clone(buf.Bytes())
	indexOffset := binary.LittleEndian.Uint64(data[len(data)-schema.FooterSize:])
	binary.LittleEndian.PutUint64(data[schema.FileHeaderSize+8:], forged)
	binary.LittleEndian.PutUint64(data[indexOffset+32:], forged)

	if _, err := ReadIndex(bytes.NewReader(data), int64(len(data))); !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("expected ErrCorruptIndex, got %v", err)
	}

	idx, err := ReadIndex(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	idx.Entries[0].CompressedSize = forged
	if _, err := idx.Payload(bytes.NewReader(data), 0); !errors.Is(err, ErrCorruptIndex) {
		t.Errorf("payload of a forged entry: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*WriterConfig){
		"zero block size": func(c *WriterConfig) { c.MaxBlockSize = 0 },
		"zero chunk":      func(c *WriterConfig) { c.ChunkSize = 0 },
		"bad width":       func(c *WriterConfig) { c.HeaderWidth = 3 },
		"bad method":      func(c *WriterConfig) { c.Method = 42 },
		"bad level":       func(c *WriterConfig) { c.Level = 9 },
	}

	if err := DefaultWriterConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for name, mutate := range cases {
		cfg := DefaultWriterConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestStartWhileOpenKeepsBlock(t *testing.T) {
	var logged bytes.Buffer
	output := color.Output
	color.Output = &logged
	defer func() { color.Output = output }()

	cfg := testConfig(compression.MethodZlib)
	cfg.Verbose = true

	buf := stream.NewBuffer(0)
	w, err := NewWriter(buf, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	uid, err := w.StartBlock()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.StartBlock(); !errors.Is(err, block.ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
	if w.State() != block.StateOpen {
		t.Fatalf("state %s, want open", w.State())
	}
	if strings.Contains(logged.String(), "failed") {
		t.Errorf("healthy block logged as failed: %q", logged.String())
	}

	in := payload(500, 3)
	if _, err := w.Write(in); err != nil {
		t.Fatal(err)
	}
	entry, err := w.FinishBlock()
	if err != nil {
		t.Fatal(err)
	}
	if entry.Uid != uid {
		t.Errorf("finished block %s, started %s", entry.Uid, uid)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	_, blocks := readBack(t, buf.Bytes())
	if len(blocks) != 1 || !bytes.Equal(blocks[0], in) {
		t.Errorf("expected the open block to survive the second start")
	}
}
