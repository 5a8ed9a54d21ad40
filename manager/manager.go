package manager

import (
	"math"

	"github.com/dot5enko/blockpack/compression"
	"github.com/dot5enko/blockpack/schema"
	"github.com/go-faster/errors"
)

// DefaultChunkSize is the size of the scratch buffer compressed output is
// moved through on its way to the stream.
const DefaultChunkSize = 1000000

const DefaultMaxBlockSize = 4 * 1024 * 1024

type WriterConfig struct {
	// MaxBlockSize caps how much raw input can be staged before it has to
	// be compressed.
	MaxBlockSize int
	ChunkSize    int

	Method      compression.Method
	Level       compression.Level
	HeaderWidth schema.HeaderWidth

	// Verbose logs every finished and failed block.
	Verbose bool
}

func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		MaxBlockSize: DefaultMaxBlockSize,
		ChunkSize:    DefaultChunkSize,
		Method:       compression.MethodZlib,
		Level:        compression.LevelBalanced,
		HeaderWidth:  schema.Width32,
	}
}

func (cfg WriterConfig) Validate() error {
	if cfg.MaxBlockSize <= 0 || uint64(cfg.MaxBlockSize) > math.MaxUint32 {
		return errors.Errorf("max block size %d out of range", cfg.MaxBlockSize)
	}
	if cfg.ChunkSize <= 0 || uint64(cfg.ChunkSize) > math.MaxUint32 {
		return errors.Errorf("chunk size %d out of range", cfg.ChunkSize)
	}
	if !cfg.HeaderWidth.Valid() {
		return errors.Wrapf(schema.ErrUnknownWidth, "width %d", cfg.HeaderWidth)
	}
	if cfg.Method.String() == "unknown" {
		return errors.Errorf("unknown compression method %d", cfg.Method)
	}
	if cfg.Level.String() == "unknown" {
		return errors.Errorf("unknown compression level %d", cfg.Level)
	}
	return nil
}
