// Package geom provides the small amount of vector math the scene needs.
package geom

import "math"

// Vec3 is a point or direction in scene space.
type Vec3 [3]float64

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Scale returns v*s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Len returns the euclidean length of v.
func (v Vec3) Len() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Cross returns the cross product v×o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// Normalize returns v scaled to unit length. The zero vector is returned
// unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Lerp interpolates between a and b by f.
func Lerp(a, b Vec3, f float64) Vec3 {
	return Vec3{
		a[0] + (b[0]-a[0])*f,
		a[1] + (b[1]-a[1])*f,
		a[2] + (b[2]-a[2])*f,
	}
}

// Finite replaces non-finite components with 0.
func Finite(v Vec3) Vec3 {
	for i := range v {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			v[i] = 0
		}
	}
	return v
}

// ArcControl returns the control point of a quadratic curve bowing away from
// the straight segment a→b. The bow is proportional to the segment length
// and always lifts along +Y so identical endpoints give identical curves.
func ArcControl(a, b Vec3, bow float64) Vec3 {
	mid := Lerp(a, b, 0.5)
	mid[1] += a.Sub(b).Len() * bow
	return mid
}

// Bezier evaluates the quadratic Bézier curve (a, c, b) at u in [0,1].
func Bezier(a, c, b Vec3, u float64) Vec3 {
	inv := 1 - u
	return a.Scale(inv * inv).Add(c.Scale(2 * inv * u)).Add(b.Scale(u * u))
}

// ArcTable maps normalized arc length to curve parameter for a quadratic
// Bézier so markers can travel at constant speed. The backing slice is
// allocated once and rebuilt in place.
type ArcTable struct {
	lengths []float64
	total   float64
}

// NewArcTable allocates a table with the given number of segments.
func NewArcTable(segments int) *ArcTable {
	if segments < 1 {
		segments = 1
	}
	return &ArcTable{lengths: make([]float64, segments+1)}
}

// Rebuild samples the curve and stores cumulative lengths.
func (t *ArcTable) Rebuild(a, c, b Vec3) {
	n := len(t.lengths) - 1
	prev := a
	t.lengths[0] = 0
	for i := 1; i <= n; i++ {
		p := Bezier(a, c, b, float64(i)/float64(n))
		t.lengths[i] = t.lengths[i-1] + p.Sub(prev).Len()
		prev = p
	}
	t.total = t.lengths[n]
}

// Total returns the approximate curve length.
func (t *ArcTable) Total() float64 {
	return t.total
}

// Param converts a normalized distance s in [0,1] into a curve parameter.
func (t *ArcTable) Param(s float64) float64 {
	n := len(t.lengths) - 1
	if t.total <= 0 || s <= 0 {
		return 0
	}
	if s >= 1 {
		return 1
	}
	target := s * t.total
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if t.lengths[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0
	}
	segStart := t.lengths[lo-1]
	segLen := t.lengths[lo] - segStart
	frac := 0.0
	if segLen > 0 {
		frac = (target - segStart) / segLen
	}
	return (float64(lo-1) + frac) / float64(n)
}
