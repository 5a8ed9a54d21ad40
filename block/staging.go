package block

import (
	"github.com/go-faster/errors"
)

var ErrCapacityExceeded = errors.New("staged input exceeds max block size")

// Staging holds raw bytes of the current block that were not compressed yet.
// Its capacity is fixed at construction and it never grows.
type Staging struct {
	data  []byte
	items int
}

func NewStaging(maxBlockSize int) *Staging {
	return &Staging{data: make([]byte, maxBlockSize)}
}

// Stage appends p. If p does not fit, nothing is staged.
func (s *Staging) Stage(p []byte) error {
	if len(p) > len(s.data)-s.items {
		return errors.Wrapf(ErrCapacityExceeded, "staged %d + %d > %d", s.items, len(p), len(s.data))
	}
	s.items += copy(s.data[s.items:], p)
	return nil
}

// Write is Stage in io.Writer form.
func (s *Staging) Write(p []byte) (int, error) {
	if err := s.Stage(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Drain returns everything staged and empties the staging area. The slice
// aliases the staging buffer and is only valid until the next Stage.
func (s *Staging) Drain() []byte {
	out := s.data[:s.items]
	s.items = 0
	return out
}

func (s *Staging) Reset() {
	s.items = 0
}

func (s *Staging) Len() int {
	return s.items
}

func (s *Staging) Cap() int {
	return len(s.data)
}

func (s *Staging) Free() int {
	return len(s.data) - s.items
}
