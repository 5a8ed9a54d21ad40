package compression

import (
	"io"
	"strings"

	"github.com/go-faster/errors"
)

// StreamCodec is a stateful streaming compressor. Output is pushed into the
// writer given to Reset as it becomes available; the codec may keep some of
// it buffered until Close terminates the stream.
type StreamCodec interface {
	Method() Method
	// Reset discards any previous stream state and binds the codec to dst.
	Reset(dst io.Writer) error
	Write(p []byte) (int, error)
	// Close terminates the current stream, draining all buffered output.
	Close() error
}

type Method uint8

const (
	MethodNone Method = iota
	MethodZlib
	MethodLZ4
	MethodZstd
)

var methodNames = map[Method]string{
	MethodNone: "none",
	MethodZlib: "zlib",
	MethodLZ4:  "lz4",
	MethodZstd: "zstd",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}

func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(s)
	if s == "deflate" {
		return MethodZlib, nil
	}
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown compression method %q", s)
}

// Level trades speed for ratio. Each codec maps it onto its own scale.
type Level int8

const (
	LevelBalanced Level = iota
	LevelFastest
	LevelBest
)

func (l Level) String() string {
	switch l {
	case LevelBalanced:
		return "balanced"
	case LevelFastest:
		return "fastest"
	case LevelBest:
		return "best"
	}
	return "unknown"
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "", "balanced", "default":
		return LevelBalanced, nil
	case "fastest", "fast", "speed":
		return LevelFastest, nil
	case "best", "max":
		return LevelBest, nil
	}
	return 0, errors.Errorf("unknown compression level %q", s)
}

// NewCodec builds a codec for method at level. The codec is not usable until
// Reset binds it to an output.
func NewCodec(method Method, level Level) (StreamCodec, error) {
	switch method {
	case MethodNone:
		return &NoneCodec{}, nil
	case MethodZlib:
		return NewZlibCodec(level), nil
	case MethodLZ4:
		return NewLz4Codec(level), nil
	case MethodZstd:
		return NewZstdCodec(level)
	}
	return nil, errors.Errorf("unsupported compression method %d", method)
}
