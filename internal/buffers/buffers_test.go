package buffers

import (
	"bytes"
	"testing"
)

func TestGrow(t *testing.T) {
	tests := []struct {
		name     string
		capacity uint64
		needed   uint64
		want     uint64
		grow     bool
	}{
		{"first allocation", 0, 10, MinCapacity, true},
		{"first allocation empty", 0, 0, MinCapacity, true},
		{"fits", MinCapacity, MinCapacity, MinCapacity, false},
		{"doubles", MinCapacity, MinCapacity + 1, 2 * MinCapacity, true},
		{"doubles repeatedly", MinCapacity, 5 * MinCapacity, 8 * MinCapacity, true},
		{"never shrinks", 64 * MinCapacity, 1, 64 * MinCapacity, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, grow := Grow(tt.capacity, tt.needed)
			if got != tt.want || grow != tt.grow {
				t.Errorf("Grow(%d, %d) = (%d, %v), want (%d, %v)", tt.capacity, tt.needed, got, grow, tt.want, tt.grow)
			}
			if got%Align != 0 {
				t.Errorf("capacity %d not %d-aligned", got, Align)
			}
		})
	}
}

func TestReservePreservesContents(t *testing.T) {
	p := New("vertices")
	first := bytes.Repeat([]byte{0xAB}, 1000)
	if !p.Stage(first) {
		t.Fatal("first Stage did not allocate")
	}

	// Growing past the current capacity keeps what was written.
	if !p.Reserve(3 * MinCapacity) {
		t.Fatal("Reserve did not grow")
	}
	if !bytes.Equal(p.Contents()[:1000], first) {
		t.Error("contents lost across growth")
	}
	if p.Capacity() != 4*MinCapacity || p.Grows() != 2 {
		t.Errorf("capacity = %d grows = %d", p.Capacity(), p.Grows())
	}
}

func TestStageReusesStorage(t *testing.T) {
	p := New("indices")
	p.Stage(make([]byte, 100))
	for range 10 {
		if p.Stage(make([]byte, 200)) {
			t.Fatal("Stage within capacity reallocated")
		}
	}
	if p.Grows() != 1 {
		t.Errorf("grows = %d, want 1", p.Grows())
	}
	if p.Used() != 200 || len(p.Staged()) != 200 {
		t.Errorf("used = %d staged = %d", p.Used(), len(p.Staged()))
	}
}

func TestStagedPadsToAlignment(t *testing.T) {
	p := New("instances")
	p.Stage([]byte{1, 2, 3, 4, 5})
	if got := len(p.Staged()); got != 8 {
		t.Errorf("staged length = %d, want 8", got)
	}
}

func TestBytes(t *testing.T) {
	type pair struct{ A, B uint32 }
	b := Bytes([]pair{{1, 2}, {3, 4}})
	if len(b) != 16 {
		t.Fatalf("len = %d, want 16", len(b))
	}
	if Bytes[pair](nil) != nil {
		t.Error("Bytes(nil) != nil")
	}
}
