package tessellate

import (
	"math"
	"slices"
)

// ring is a closed fill contour with its signed area.
type ring struct {
	pts   []Point
	area  float32
	index int
}

// region is one outer ring with the holes directly inside it. The outer ring
// has positive signed area, holes negative.
type region struct {
	outer ring
	holes []ring
}

// evenOddRegions applies the even-odd rule to non-crossing rings: a ring
// nested inside an odd number of others is a hole of the smallest ring
// enclosing it, one nested inside an even number starts a new region.
// Regions are returned in input order of their outer rings.
func evenOddRegions(rings []ring) []region {
	if len(rings) == 1 {
		r := rings[0]
		if r.area < 0 {
			r.pts, r.area = reversed(r.pts), -r.area
		}
		return []region{{outer: r}}
	}

	depth := make([]int, len(rings))
	parent := make([]int, len(rings))
	for i, r := range rings {
		parent[i] = -1
		for j, o := range rings {
			if i == j || !insideRing(o.pts, r.pts[0]) {
				continue
			}
			depth[i]++
			if parent[i] < 0 || abs32(o.area) < abs32(rings[parent[i]].area) {
				parent[i] = j
			}
		}
	}

	var regions []region
	regionOf := make([]int, len(rings))
	for i, r := range rings {
		if depth[i]%2 != 0 {
			continue
		}
		if r.area < 0 {
			r.pts, r.area = reversed(r.pts), -r.area
		}
		regionOf[i] = len(regions)
		regions = append(regions, region{outer: r})
	}
	for i, r := range rings {
		if depth[i]%2 == 0 {
			continue
		}
		if r.area > 0 {
			r.pts, r.area = reversed(r.pts), -r.area
		}
		reg := &regions[regionOf[parent[i]]]
		reg.holes = append(reg.holes, r)
	}
	return regions
}

// bridgeHoles merges the holes of reg into its outer ring through zero-width
// bridges, giving one simple outline ear clipping can handle. Holes are
// bridged rightmost first, each to the nearest ring vertex it can see. It
// returns the merged outline and the holes that were bridged; a hole with no
// visible vertex is left out.
func bridgeHoles(reg region) ([]Point, []ring) {
	holes := slices.Clone(reg.holes)
	slices.SortStableFunc(holes, func(a, b ring) int {
		ax, bx := a.pts[rightmost(a.pts)].X, b.pts[rightmost(b.pts)].X
		switch {
		case ax > bx:
			return -1
		case ax < bx:
			return 1
		}
		return 0
	})

	outline := slices.Clone(reg.outer.pts)
	var bridged []ring
	order := make([]int, 0, len(outline))
	for h, hole := range holes {
		m := rightmost(hole.pts)
		mp := hole.pts[m]

		order = order[:0]
		for i := range outline {
			order = append(order, i)
		}
		slices.SortStableFunc(order, func(a, b int) int {
			da, db := dist2(outline[a], mp), dist2(outline[b], mp)
			switch {
			case da < db:
				return -1
			case da > db:
				return 1
			}
			return 0
		})

		// A bridge running along an edge at either end leaves collinear
		// vertices in the outline, so those are only taken as a last resort.
		at := -1
		for _, straight := range []bool{false, true} {
			for _, i := range order {
				if !straight && (alongEdge(mp, outline, i) || alongEdge(outline[i], hole.pts, m)) {
					continue
				}
				if visible(mp, outline[i], outline, holes[h:], reg) {
					at = i
					break
				}
			}
			if at >= 0 {
				break
			}
		}
		if at < 0 {
			continue
		}

		merged := make([]Point, 0, len(outline)+len(hole.pts)+2)
		merged = append(merged, outline[:at+1]...)
		merged = append(merged, hole.pts[m:]...)
		merged = append(merged, hole.pts[:m+1]...)
		merged = append(merged, outline[at:]...)
		outline = merged
		bridged = append(bridged, hole)
	}
	return outline, bridged
}

// visible reports whether the segment a-b can serve as a bridge: it crosses
// no edge of the current outline or of the holes not yet merged, and its
// midpoint lies inside the filled part of the region.
func visible(a, b Point, outline []Point, pending []ring, reg region) bool {
	if a == b {
		return false
	}
	if crossesRing(a, b, outline) {
		return false
	}
	for _, h := range pending {
		if crossesRing(a, b, h.pts) {
			return false
		}
	}
	mid := Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	if !insideRing(reg.outer.pts, mid) {
		return false
	}
	for _, h := range reg.holes {
		if insideRing(h.pts, mid) {
			return false
		}
	}
	return true
}

// alongEdge reports whether the segment from p to pts[i] is collinear with
// either edge of pts at i.
func alongEdge(p Point, pts []Point, i int) bool {
	n := len(pts)
	q := pts[i]
	return turn(p, q, pts[(i+n-1)%n]) == 0 || turn(p, q, pts[(i+1)%n]) == 0
}

// crossesRing reports whether segment a-b properly crosses an edge of pts or
// passes through one of its vertices. Edges touching a or b are ignored.
func crossesRing(a, b Point, pts []Point) bool {
	for i := range pts {
		p, q := pts[i], pts[(i+1)%len(pts)]
		if p == a || p == b || q == a || q == b {
			continue
		}
		d1, d2 := turn(a, b, p), turn(a, b, q)
		d3, d4 := turn(p, q, a), turn(p, q, b)
		if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
			return true
		}
		if (d1 == 0 && between(a, b, p)) || (d2 == 0 && between(a, b, q)) {
			return true
		}
	}
	return false
}

// between reports whether p, collinear with a-b, lies within the segment.
func between(a, b, p Point) bool {
	return p.X >= min(a.X, b.X) && p.X <= max(a.X, b.X) &&
		p.Y >= min(a.Y, b.Y) && p.Y <= max(a.Y, b.Y)
}

// insideRing is the even-odd point-in-polygon test.
func insideRing(pts []Point, p Point) bool {
	in := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		a, b := pts[i], pts[j]
		if (a.Y > p.Y) == (b.Y > p.Y) {
			continue
		}
		x := float64(a.X) + (float64(p.Y)-float64(a.Y))*(float64(b.X)-float64(a.X))/(float64(b.Y)-float64(a.Y))
		if float64(p.X) < x {
			in = !in
		}
	}
	return in
}

func rightmost(pts []Point) int {
	best := 0
	for i, p := range pts {
		if p.X > pts[best].X || (p.X == pts[best].X && p.Y < pts[best].Y) {
			best = i
		}
	}
	return best
}

func dist2(a, b Point) float64 {
	dx, dy := float64(a.X-b.X), float64(a.Y-b.Y)
	return dx*dx + dy*dy
}

func abs32(v float32) float32 { return float32(math.Abs(float64(v))) }
