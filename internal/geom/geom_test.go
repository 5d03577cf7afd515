package geom

import (
	"math"
	"testing"
)

func TestFinite(t *testing.T) {
	v := Finite(Vec3{math.NaN(), math.Inf(1), 2})
	if v != (Vec3{0, 0, 2}) {
		t.Errorf("expected {0 0 2}, got %v", v)
	}
}

func TestBezier_Endpoints(t *testing.T) {
	a := Vec3{0, 0, 0}
	b := Vec3{4, 0, 0}
	c := ArcControl(a, b, 0.25)
	if c[1] != 1 {
		t.Errorf("expected control lifted by 1, got %v", c)
	}
	if Bezier(a, c, b, 0) != a {
		t.Error("u=0 should be the start point")
	}
	if Bezier(a, c, b, 1) != b {
		t.Error("u=1 should be the end point")
	}
}

func TestArcTable_ConstantSpeed(t *testing.T) {
	a := Vec3{0, 0, 0}
	b := Vec3{10, 0, 0}
	c := ArcControl(a, b, 0.4)

	table := NewArcTable(64)
	table.Rebuild(a, c, b)

	// Equal steps in normalized distance must give roughly equal chord lengths.
	var steps []float64
	prev := Bezier(a, c, b, table.Param(0))
	for i := 1; i <= 10; i++ {
		p := Bezier(a, c, b, table.Param(float64(i)/10))
		steps = append(steps, p.Sub(prev).Len())
		prev = p
	}
	for i, s := range steps {
		if math.Abs(s-steps[0]) > 0.05*steps[0] {
			t.Errorf("step %d length %.4f deviates from %.4f", i, s, steps[0])
		}
	}
}

func TestArcTable_Degenerate(t *testing.T) {
	table := NewArcTable(8)
	p := Vec3{1, 1, 1}
	table.Rebuild(p, p, p)
	if table.Total() != 0 {
		t.Errorf("expected zero length, got %f", table.Total())
	}
	if got := table.Param(0.5); got != 0 {
		t.Errorf("expected param 0 for degenerate curve, got %f", got)
	}
}

func TestCrossDotNormalize(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	if got := x.Cross(y); got != (Vec3{0, 0, 1}) {
		t.Errorf("x cross y = %v", got)
	}
	if x.Dot(y) != 0 || x.Dot(x) != 1 {
		t.Error("unexpected dot products")
	}
	if got := (Vec3{3, 0, 4}).Normalize(); math.Abs(got.Len()-1) > 1e-12 {
		t.Errorf("normalized length %v", got.Len())
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("zero vector changed: %v", got)
	}
}
