package text

// shelfAllocator packs rectangles in horizontal shelves. Each shelf is as
// tall as the tallest rectangle placed on it; rectangles fill a shelf left
// to right and a new shelf opens below when none has room. Glyph boxes of
// one face share a height, so shelves are filled without waste.
type shelfAllocator struct {
	width, height int
	padding       int
	shelves       []shelf
}

type shelf struct {
	y      int
	height int
	x      int // next free column
}

func newShelfAllocator(width, height, padding int) *shelfAllocator {
	return &shelfAllocator{width: width, height: height, padding: padding}
}

// allocate reserves a w×h rectangle and returns its top-left corner.
// Every rectangle keeps padding free pixels to its right and below.
func (a *shelfAllocator) allocate(w, h int) (x, y int, ok bool) {
	pw, ph := w+a.padding, h+a.padding
	if pw > a.width || ph > a.height {
		return -1, -1, false
	}
	for i := range a.shelves {
		s := &a.shelves[i]
		if s.x+pw > a.width {
			continue
		}
		if h > s.height {
			// Only the last shelf can grow.
			if i != len(a.shelves)-1 || s.y+ph > a.height {
				continue
			}
			s.height = h
		}
		x, y = s.x, s.y
		s.x += pw
		return x, y, true
	}

	y = 0
	if n := len(a.shelves); n > 0 {
		last := a.shelves[n-1]
		y = last.y + last.height + a.padding
	}
	if y+ph > a.height {
		return -1, -1, false
	}
	a.shelves = append(a.shelves, shelf{y: y, height: h, x: pw})
	return 0, y, true
}
