// Package block frames compressed blocks on an output stream.
//
// Every block starts with a fixed-width header holding the raw and the
// compressed size of its payload. The sizes are only known once the block is
// finished, so StartBlock writes a zeroed placeholder, the compressed payload
// follows it, and Finish goes back and patches the header in place.
//
//	w.StartBlock()
//	w.Stage(raw)      // any number of times, up to the staging capacity
//	w.Compress()      // any number of times
//	info, err := w.Finish()
package block

import (
	"github.com/dot5enko/blockpack/compression"
	"github.com/dot5enko/blockpack/schema"
	"github.com/dot5enko/blockpack/stream"
	"github.com/go-faster/errors"
)

var (
	ErrInvalidTransition = errors.New("invalid block state transition")
	ErrAlreadyOpen       = errors.Wrap(ErrInvalidTransition, "block already open")
	ErrNotOpen           = errors.Wrap(ErrInvalidTransition, "no open block")
)

type State uint8

const (
	StateIdle State = iota
	StateOpen
	StateClosed
	// StateFailed is an open block that hit a fatal error. It can only be
	// left through StartBlock or Abort; its header is never finalized.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Info describes a finished block.
type Info struct {
	Start          stream.Marker
	RawSize        uint64
	CompressedSize uint64
}

func (i Info) Offset() int64 {
	return i.Start.Offset()
}

type Writer struct {
	out     *stream.Stream
	patcher stream.Patcher
	width   schema.HeaderWidth

	staging *Staging
	encoder *Encoder

	state State
	start stream.Marker
	err   error

	headerBuf [schema.MaxHeaderSize]byte
}

// NewWriter frames blocks on out. engine must be exclusive to this writer.
func NewWriter(out *stream.Stream, engine *compression.Engine, maxBlockSize int, width schema.HeaderWidth) (*Writer, error) {
	if !width.Valid() {
		return nil, errors.Wrapf(schema.ErrUnknownWidth, "width %d", width)
	}
	if maxBlockSize <= 0 {
		return nil, errors.Errorf("max block size must be positive, got %d", maxBlockSize)
	}

	staging := NewStaging(maxBlockSize)

	return &Writer{
		out:     out,
		patcher: out.Patcher(),
		width:   width,
		staging: staging,
		encoder: NewEncoder(staging, engine, out),
	}, nil
}

func (w *Writer) State() State {
	return w.state
}

func (w *Writer) HeaderWidth() schema.HeaderWidth {
	return w.width
}

// Staging exposes the staging area of the open block.
func (w *Writer) Staging() *Staging {
	return w.staging
}

// Totals are the sizes accumulated so far by the open block.
func (w *Writer) Totals() (rawSize, compressedSize uint64) {
	return w.encoder.Totals()
}

// StartBlock writes a placeholder header at the current position and opens
// a new block. The returned marker is where the block starts.
func (w *Writer) StartBlock() (stream.Marker, error) {
	if w.state == StateOpen {
		return stream.Marker{}, ErrAlreadyOpen
	}

	w.err = nil
	w.start = w.out.Mark()

	placeholder, err := schema.BlockHeader{}.Encode(w.headerBuf[:], w.width)
	if err != nil {
		return stream.Marker{}, w.fail(err)
	}
	if _, err := w.out.Write(placeholder); err != nil {
		return stream.Marker{}, w.fail(err)
	}
	if err := w.encoder.Reset(); err != nil {
		return stream.Marker{}, w.fail(err)
	}

	w.state = StateOpen
	return w.start, nil
}

// Stage appends raw bytes to the open block. It fails with
// ErrCapacityExceeded when they do not fit; call Compress to make room.
func (w *Writer) Stage(p []byte) error {
	if err := w.requireOpen("stage"); err != nil {
		return err
	}
	return w.staging.Stage(p)
}

func (w *Writer) Write(p []byte) (int, error) {
	if err := w.Stage(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Compress compresses everything staged so far.
func (w *Writer) Compress() error {
	if err := w.requireOpen("compress"); err != nil {
		return err
	}
	if err := w.encoder.Compress(); err != nil {
		return w.fail(err)
	}
	return nil
}

// Finish terminates the compressed stream, patches the block header with the
// final sizes and closes the block. The append position after Finish is the
// end of the block's payload.
func (w *Writer) Finish() (Info, error) {
	switch w.state {
	case StateIdle:
		return Info{}, ErrNotOpen
	case StateClosed:
		return Info{}, errors.Wrap(ErrInvalidTransition, "block already finished")
	case StateFailed:
		return Info{}, w.err
	}

	rawSize, compressedSize, err := w.encoder.FinishCompression()
	if err != nil {
		return Info{}, w.fail(err)
	}

	header := schema.BlockHeader{RawSize: rawSize, CompressedSize: compressedSize}
	encoded, err := header.Encode(w.headerBuf[:], w.width)
	if err != nil {
		return Info{}, w.fail(err)
	}
	if err := w.patcher.WriteAt(w.start, encoded); err != nil {
		return Info{}, w.fail(err)
	}

	w.state = StateClosed
	return Info{
		Start:          w.start,
		RawSize:        rawSize,
		CompressedSize: compressedSize,
	}, nil
}

// Abort drops the open or failed block. Whatever was already written stays
// in the stream behind a placeholder header.
func (w *Writer) Abort() {
	if w.state != StateOpen && w.state != StateFailed {
		return
	}
	w.staging.Reset()
	w.err = nil
	w.state = StateIdle
}

// Err is the error that failed the current block, if any.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) requireOpen(op string) error {
	switch w.state {
	case StateOpen:
		return nil
	case StateFailed:
		return w.err
	}
	return errors.Wrapf(ErrInvalidTransition, "%s in state %s", op, w.state)
}

func (w *Writer) fail(err error) error {
	w.err = err
	w.state = StateFailed
	return err
}
