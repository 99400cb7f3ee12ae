package text

import "testing"

func TestShelfAllocator(t *testing.T) {
	a := newShelfAllocator(20, 20, 1)

	tests := []struct {
		w, h   int
		x, y   int
		wantOK bool
	}{
		{w: 8, h: 5, x: 0, y: 0, wantOK: true},
		{w: 8, h: 5, x: 9, y: 0, wantOK: true},
		// No room left on the first shelf.
		{w: 8, h: 5, x: 0, y: 6, wantOK: true},
		// The last shelf grows to fit a taller rectangle.
		{w: 4, h: 7, x: 9, y: 6, wantOK: true},
		{w: 20, h: 1, wantOK: false},
		{w: 10, h: 5, x: 0, y: 14, wantOK: true},
		{w: 10, h: 6, wantOK: false},
	}
	for i, tt := range tests {
		x, y, ok := a.allocate(tt.w, tt.h)
		if ok != tt.wantOK {
			t.Fatalf("#%d allocate(%d, %d) ok = %v, want %v", i, tt.w, tt.h, ok, tt.wantOK)
		}
		if ok && (x != tt.x || y != tt.y) {
			t.Errorf("#%d allocate(%d, %d) = (%d, %d), want (%d, %d)", i, tt.w, tt.h, x, y, tt.x, tt.y)
		}
	}
}
