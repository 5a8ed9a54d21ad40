package cache

import (
	"testing"
)

const benchChunkSize = 64 * 1024

func touch(buf []byte) {
	for i := 0; i < len(buf); i += 64 {
		buf[i]++
	}
}

func TestBuffersDoNotOverlap(t *testing.T) {
	p := NewFixedSizeBufferPool(3, 16)

	a, aid := p.Get()
	b, bid := p.Get()

	if len(a) != 16 || cap(a) != 16 {
		t.Fatalf("buffer len=%d cap=%d, want 16/16", len(a), cap(a))
	}

	// appending to a full-capacity slice must not spill into the neighbour
	a = append(a, 0xff)
	for _, v := range b {
		if v != 0 {
			t.Fatalf("neighbour buffer was overwritten")
		}
	}

	p.Return(aid)
	p.Return(bid)
	if p.Available() != 3 {
		t.Errorf("expected 3 free buffers, got %d", p.Available())
	}
}

func TestTryGetOnExhaustedPool(t *testing.T) {
	p := NewFixedSizeBufferPool(1, 8)

	_, id, ok := p.TryGet()
	if !ok {
		t.Fatalf("first TryGet should succeed")
	}
	if _, _, ok := p.TryGet(); ok {
		t.Fatalf("pool of one should be exhausted")
	}

	p.Return(id)
	if _, _, ok := p.TryGet(); !ok {
		t.Fatalf("returned buffer should be available again")
	}
}

func BenchmarkSliceArena(b *testing.B) {
	p := NewFixedSizeBufferPool(128, benchChunkSize)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, idx := p.Get()
			touch(buf)
			p.Return(idx)
		}
	})
}

func BenchmarkSliceNoArena(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := make([]byte, benchChunkSize)
			touch(buf)
		}
	})
}

func TestPoolSizeLimits(t *testing.T) {
	cases := []struct {
		name    string
		n, size int
	}{
		{"no buffers", 0, 16},
		{"ids overflow", MaxBuffers + 1, 1},
		{"zero size", 2, 0},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("pool of %d x %d accepted", tt.n, tt.size)
				}
			}()
			NewFixedSizeBufferPool(tt.n, tt.size)
		})
	}
}

func TestPoolWithMaxBuffers(t *testing.T) {
	p := NewFixedSizeBufferPool(MaxBuffers, 1)

	seen := make(map[uint16]bool, MaxBuffers)
	for range MaxBuffers {
		_, id, ok := p.TryGet()
		if !ok {
			t.Fatalf("pool exhausted after %d buffers", len(seen))
		}
		if seen[id] {
			t.Fatalf("id %d handed out twice", id)
		}
		seen[id] = true
	}
	if p.Available() != 0 {
		t.Errorf("%d buffers left", p.Available())
	}
}
