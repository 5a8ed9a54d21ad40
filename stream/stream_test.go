package stream

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPatchIsCursorNeutral(t *testing.T) {
	buf := NewBuffer(0)
	s := New(buf, 0)

	s.Write([]byte("ab"))
	m := s.Mark()
	s.PutUint32(0)
	s.Write([]byte("payload"))

	before := s.Tell()
	if err := s.Patcher().WriteAt(m, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if s.Tell() != before {
		t.Fatalf("append position moved from %d to %d", before, s.Tell())
	}

	s.WriteByte('!')
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	want := []byte("ab\x01\x02\x03\x04payload!")
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %q, want %q", buf.Bytes(), want)
	}
}

func TestPatchRejectsGrowth(t *testing.T) {
	s := New(NewBuffer(0), 0)
	m := s.Mark()
	s.PutUint16(0)

	err := s.Patcher().WriteAt(m, []byte{1, 2, 3})
	if !errors.Is(err, ErrPatchBeyondEnd) {
		t.Fatalf("expected ErrPatchBeyondEnd, got %v", err)
	}
}

func TestPatchRejectsStaleMarker(t *testing.T) {
	s := New(NewBuffer(0), 0)
	m := s.Mark()
	s.PutUint64(0)

	if err := s.Reset(0); err != nil {
		t.Fatal(err)
	}
	s.PutUint64(0)

	err := s.Patcher().WriteAt(m, []byte{1})
	if !errors.Is(err, ErrStaleMarker) {
		t.Fatalf("expected ErrStaleMarker, got %v", err)
	}
}

func TestFileSinkPatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	s := New(f, 0)
	m := s.Mark()
	s.PutUint32(0)
	s.Write(bytes.Repeat([]byte{0xaa}, 100))

	if err := s.Patcher().WriteAt(m, []byte{9, 9, 9, 9}); err != nil {
		t.Fatal(err)
	}
	s.WriteByte(0xbb)
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 105 {
		t.Fatalf("expected 105 bytes, got %d", len(got))
	}
	if !bytes.Equal(got[:4], []byte{9, 9, 9, 9}) || got[104] != 0xbb {
		t.Errorf("unexpected content % x ... % x", got[:4], got[100:])
	}
}
