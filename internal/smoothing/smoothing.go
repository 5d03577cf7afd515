// Package smoothing implements frame-rate independent exponential damping.
//
// Every visual transition in the scene moves through these functions. The
// blend factor is derived from elapsed time, so two 8ms ticks land on the same
// value as one 16ms tick.
package smoothing

import (
	"math"

	"github.com/vinayprograms/loopscope/internal/geom"
)

// Factor returns the blend factor 1-e^(-lambda*dt), in [0,1).
// Non-positive or non-finite inputs give 0.
func Factor(lambda, dt float64) float64 {
	if math.IsNaN(lambda) || math.IsNaN(dt) || lambda <= 0 || dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-lambda*dt)
}

// Damp moves current toward target.
func Damp(current, target, lambda, dt float64) float64 {
	f := Factor(lambda, dt)
	if f == 0 {
		return current
	}
	if f >= 1 {
		return target
	}
	return current + (target-current)*f
}

// DampVec3 applies Damp to each component using a single blend factor.
func DampVec3(current, target geom.Vec3, lambda, dt float64) geom.Vec3 {
	f := Factor(lambda, dt)
	if f == 0 {
		return current
	}
	if f >= 1 {
		return target
	}
	return geom.Lerp(current, target, f)
}
