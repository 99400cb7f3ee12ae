package tessellate

// earClip triangulates a simple polygon with positive signed area and appends
// the triangle indices (offset by base) to out. When no ear can be found the
// outline self-intersects; the remainder is fanned and ok is false.
func earClip(pts []Point, base uint32, out []uint32) (_ []uint32, ok bool) {
	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}
	emit := func(a, b, c int) {
		out = append(out, base+uint32(a), base+uint32(b), base+uint32(c)) //nolint:gosec // G115: polygon indices fit uint32
	}

	for len(idx) > 3 {
		n := len(idx)
		clipped := false
		for i := 0; i < n; i++ {
			a, b, c := idx[(i+n-1)%n], idx[i], idx[(i+1)%n]
			cr := turn(pts[a], pts[b], pts[c])
			if cr < 0 {
				continue
			}
			if cr == 0 {
				// Collinear vertex: drop it without emitting a sliver.
				idx = append(idx[:i], idx[i+1:]...)
				clipped = true
				break
			}
			if containsOther(pts, idx, a, b, c) {
				continue
			}
			emit(a, b, c)
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			for k := 1; k+1 < len(idx); k++ {
				emit(idx[0], idx[k], idx[k+1])
			}
			return out, false
		}
	}
	if len(idx) == 3 && turn(pts[idx[0]], pts[idx[1]], pts[idx[2]]) != 0 {
		emit(idx[0], idx[1], idx[2])
	}
	return out, true
}

// turn is the z component of (b-a) × (c-b); positive for a convex corner of a
// polygon with positive signed area.
func turn(a, b, c Point) float64 {
	return float64(b.X-a.X)*float64(c.Y-b.Y) - float64(b.Y-a.Y)*float64(c.X-b.X)
}

func containsOther(pts []Point, idx []int, a, b, c int) bool {
	pa, pb, pc := pts[a], pts[b], pts[c]
	for _, j := range idx {
		if j == a || j == b || j == c {
			continue
		}
		p := pts[j]
		if p == pa || p == pb || p == pc {
			continue
		}
		if turn(pa, pb, p) >= 0 && turn(pb, pc, p) >= 0 && turn(pc, pa, p) >= 0 {
			return true
		}
	}
	return false
}
