package geofence

import "gonum.org/v1/gonum/spatial/r3"

// insidePolygon is the even-odd ray casting test in the xy plane.
func insidePolygon(poly []r3.Vec, p r3.Vec) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// cross2 is the z component of (b-a) x (c-a).
func cross2(a, b, c r3.Vec) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func sign(v float64) int {
	const eps = 1e-12
	switch {
	case v > eps:
		return 1
	case v < -eps:
		return -1
	default:
		return 0
	}
}

func onSegment(a, b, p r3.Vec) bool {
	return p.X >= min(a.X, b.X) && p.X <= max(a.X, b.X) &&
		p.Y >= min(a.Y, b.Y) && p.Y <= max(a.Y, b.Y)
}

// segmentsIntersect reports whether segments p1p2 and q1q2 share a point in
// the xy plane, touching included.
func segmentsIntersect(p1, p2, q1, q2 r3.Vec) bool {
	d1 := sign(cross2(q1, q2, p1))
	d2 := sign(cross2(q1, q2, p2))
	d3 := sign(cross2(p1, p2, q1))
	d4 := sign(cross2(p1, p2, q2))

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

// crossesPolygon reports whether the segment from-to touches any edge.
func crossesPolygon(poly []r3.Vec, from, to r3.Vec) bool {
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		if segmentsIntersect(from, to, poly[j], poly[i]) {
			return true
		}
	}
	return false
}
