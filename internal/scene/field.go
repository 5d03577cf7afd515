package scene

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/vinayprograms/loopscope/internal/geom"
	"github.com/vinayprograms/loopscope/internal/smoothing"
	"github.com/vinayprograms/loopscope/internal/visual"
)

type particle struct {
	base  geom.Vec3
	phase float64
	rate  float64
}

// field is the ambient chaos particle cloud. Particles are laid out once from
// a hash of their index, so the cloud looks the same on every run.
type field struct {
	particles []particle
	limit     int

	count, countTarget     float64
	opacity, opacityTarget float64
	noise, noiseTarget     float64
	chaos                  float64
}

func newField(limit int) *field {
	limit = max(0, min(limit, MaxParticles))
	f := &field{particles: make([]particle, limit), limit: limit}
	var buf [8]byte
	for i := range f.particles {
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		h := xxhash.Sum64(buf[:])
		f.particles[i] = particle{
			base: geom.Vec3{
				unit(h) * FieldExtent,
				unit(h>>16) * FieldExtent * 0.6,
				unit(h>>32) * FieldExtent,
			},
			phase: float64(h>>48) / float64(1<<16) * 2 * math.Pi,
			rate:  0.2 + 0.3*float64((h>>8)&0xff)/255,
		}
	}
	return f
}

// unit maps the low 16 bits of h into [-1, 1].
func unit(h uint64) float64 {
	return float64(h&0xffff)/float64(0xffff)*2 - 1
}

func (f *field) set(v *visual.Field) {
	if v == nil {
		f.countTarget, f.opacityTarget, f.noiseTarget, f.chaos = 0, 0, 0, 0
		return
	}
	// Caps apply after normalization, whatever the input.
	f.countTarget = math.Round(visual.Clamp01(v.Density) * float64(f.limit))
	f.opacityTarget = min(MaxParticleOpacity, MaxParticleOpacity*(0.3+0.7*visual.Clamp01(v.Chaos)))
	f.noiseTarget = visual.Clamp01(v.NoiseAmp)
	f.chaos = visual.Clamp01(v.Chaos)
}

func (f *field) tick(lambda, dt float64) {
	f.count = smoothing.Damp(f.count, f.countTarget, lambda, dt)
	f.opacity = smoothing.Damp(f.opacity, f.opacityTarget, lambda, dt)
	f.noise = smoothing.Damp(f.noise, f.noiseTarget, lambda, dt)
}

func (f *field) visible() int {
	return max(0, min(int(math.Round(f.count)), f.limit))
}

// position of particle i at the given clock, drifting around its base.
func (f *field) position(i int, clock float64) geom.Vec3 {
	p := f.particles[i]
	amp := MaxDrift * f.noise
	w := clock*p.rate*(0.5+f.chaos) + p.phase
	return p.base.Add(geom.Vec3{amp * math.Sin(w), amp * math.Cos(w*0.7), amp * math.Sin(w*1.3)})
}
