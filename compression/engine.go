package compression

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrCompressionFault = errors.New("compression fault")
	ErrEngineNotReady   = errors.New("engine needs a reset before feeding")
	ErrEmptyChunk       = errors.New("chunk buffer has no capacity")
)

var errOutputOutsideFeed = errors.New("compressor produced output outside of feed")

// FaultError is returned when the compressor itself fails. It matches
// ErrCompressionFault with errors.Is.
type FaultError struct {
	Method Method
	Err    error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCompressionFault, e.Method, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

func (e *FaultError) Is(target error) bool { return target == ErrCompressionFault }

// Engine drives a StreamCodec over one fixed chunk arena. Compressed output
// lands in the arena and leaves it through the emit callback of the current
// Feed call, one chunk at a time and in order. The arena is never resized.
type Engine struct {
	codec StreamCodec

	chunk  []byte
	filled int

	emit    func([]byte) error
	emitErr error

	ready bool
	fault error
}

func NewEngine(codec StreamCodec, chunk []byte) (*Engine, error) {
	if len(chunk) == 0 {
		return nil, ErrEmptyChunk
	}
	return &Engine{codec: codec, chunk: chunk}, nil
}

func (e *Engine) Method() Method {
	return e.codec.Method()
}

func (e *Engine) ChunkSize() int {
	return len(e.chunk)
}

// Reset starts a new compressed stream and clears any previous fault.
func (e *Engine) Reset() error {
	e.filled = 0
	e.emit = nil
	e.emitErr = nil
	e.fault = nil
	e.ready = false

	if err := e.codec.Reset((*chunkSink)(e)); err != nil {
		return e.fail(err)
	}
	e.ready = true
	return nil
}

// Feed compresses input. Every chunk the compressor produces while doing so
// is handed to emit, including a trailing partial one. With final set the
// stream is terminated and all output the compressor still holds is drained;
// the engine then needs a Reset before the next Feed.
//
// Errors returned by emit are passed back unchanged. Compressor errors come
// back as *FaultError. Either poisons the engine until the next Reset.
func (e *Engine) Feed(input []byte, final bool, emit func(chunk []byte) error) error {
	if e.fault != nil {
		return e.fault
	}
	if !e.ready {
		return ErrEngineNotReady
	}

	e.emit = emit
	defer func() { e.emit = nil }()

	if len(input) > 0 {
		if _, err := e.codec.Write(input); err != nil {
			return e.fail(err)
		}
	}

	if final {
		e.ready = false
		if err := e.codec.Close(); err != nil {
			return e.fail(err)
		}
	}

	if err := e.flushChunk(); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *Engine) fail(err error) error {
	if e.emitErr != nil {
		e.fault = e.emitErr
	} else {
		e.fault = &FaultError{Method: e.codec.Method(), Err: err}
	}
	e.ready = false
	return e.fault
}

func (e *Engine) flushChunk() error {
	if e.filled == 0 {
		return nil
	}
	if e.emit == nil {
		e.emitErr = errOutputOutsideFeed
		return e.emitErr
	}

	n := e.filled
	e.filled = 0
	if err := e.emit(e.chunk[:n]); err != nil {
		e.emitErr = err
		return err
	}
	return nil
}

// chunkSink is the writer the codec pushes compressed bytes into.
type chunkSink Engine

func (s *chunkSink) Write(p []byte) (int, error) {
	e := (*Engine)(s)

	written := 0
	for len(p) > 0 {
		n := copy(e.chunk[e.filled:], p)
		e.filled += n
		written += n
		p = p[n:]

		if e.filled == len(e.chunk) {
			if err := e.flushChunk(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}
