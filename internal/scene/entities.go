package scene

import (
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/vinayprograms/loopscope/internal/geom"
	"github.com/vinayprograms/loopscope/internal/smoothing"
	"github.com/vinayprograms/loopscope/internal/visual"
)

// phaseOf maps an id to a stable phase offset in [0, 2π).
func phaseOf(id string) float64 {
	return float64(xxhash.Sum64String(id)%1_000_003) / 1_000_003 * 2 * math.Pi
}

// look holds the smoothed appearance shared by every entity kind.
type look struct {
	scale, opacity, emissive float64

	// Targets before focus is applied.
	baseScale, baseOpacity, baseEmissive float64
	// Targets after focus is applied.
	scaleTarget, opacityTarget, emissiveTarget float64
}

func (l *look) retarget(focused, dimmed bool) {
	l.scaleTarget = l.baseScale
	l.opacityTarget = l.baseOpacity
	l.emissiveTarget = l.baseEmissive
	switch {
	case focused:
		l.scaleTarget *= FocusScale
		l.emissiveTarget *= FocusEmissive
	case dimmed:
		l.opacityTarget *= DimOpacity
		l.emissiveTarget *= DimEmissive
	}
}

func (l *look) damp(lambda, dt float64) {
	l.scale = smoothing.Damp(l.scale, l.scaleTarget, lambda, dt)
	l.opacity = smoothing.Damp(l.opacity, l.opacityTarget, lambda, dt)
	l.emissive = smoothing.Damp(l.emissive, l.emissiveTarget, lambda, dt)
}

type nodeEntity struct {
	look
	id        string
	shape     visual.Shape
	color     string
	intensity float64
	phase     float64
	pos       geom.Vec3
	posTarget geom.Vec3
	rotation  float64
}

func newNode(n visual.Node) *nodeEntity {
	e := &nodeEntity{id: n.ID, phase: phaseOf(n.ID), pos: n.Pos}
	e.set(n)
	return e
}

func (e *nodeEntity) set(n visual.Node) {
	e.shape = n.Shape
	e.color = n.Color
	e.intensity = n.Intensity
	e.posTarget = n.Pos
	e.baseScale = 1
	if n.Scale != nil {
		e.baseScale = *n.Scale
	}
	e.baseOpacity = n.Opacity
	e.baseEmissive = n.Intensity
}

func (e *nodeEntity) tick(lambda, dt float64) {
	e.pos = smoothing.DampVec3(e.pos, e.posTarget, lambda, dt)
	e.damp(lambda, dt)
	e.rotation = math.Mod(e.rotation+dt*MaxSpin*e.intensity, 2*math.Pi)
}

// displayScale adds the idle pulse on top of the smoothed scale.
func (e *nodeEntity) displayScale(clock float64) float64 {
	return e.scale * (1 + PulseAmplitude*e.intensity*math.Sin(2*math.Pi*PulseHz*clock+e.phase))
}

type loopEntity struct {
	look
	id           string
	kind         visual.LoopType
	phase        float64
	center       geom.Vec3
	centerTarget geom.Vec3
	radius       float64
	radiusTarget float64
	flowSpeed    float64
	bottleneck   float64
	delay        float64
	rotation     float64
}

func newLoop(l visual.Loop) *loopEntity {
	e := &loopEntity{id: l.ID, phase: phaseOf(l.ID), center: l.Center, radius: l.Radius}
	e.set(l)
	return e
}

func (e *loopEntity) set(l visual.Loop) {
	e.kind = l.Type
	e.centerTarget = l.Center
	e.radiusTarget = l.Radius
	e.flowSpeed = l.FlowSpeed
	e.bottleneck = 0
	if l.Bottleneck != nil {
		e.bottleneck = *l.Bottleneck
	}
	e.delay = 0
	if l.Delay != nil {
		e.delay = *l.Delay
	}
	e.baseScale = 1
	e.baseOpacity = 0.4 + 0.6*l.Intensity
	e.baseEmissive = l.Intensity
}

func (e *loopEntity) tick(lambda, dt float64) {
	e.center = smoothing.DampVec3(e.center, e.centerTarget, lambda, dt)
	e.radius = smoothing.Damp(e.radius, e.radiusTarget, lambda, dt)
	e.damp(lambda, dt)

	// Reinforcing loops turn one way, balancing loops the other. A bottleneck
	// slows the ring down.
	dir := 1.0
	if e.kind == visual.LoopBalancing {
		dir = -1
	}
	rate := MaxSpin * min(1, e.flowSpeed) * (1 - 0.5*e.bottleneck)
	e.rotation = math.Mod(e.rotation+dir*rate*dt, 2*math.Pi)
}

// pulse is the idle emissive modulation, lagged by the loop's delay.
func (e *loopEntity) pulse(clock float64) float64 {
	return 1 + PulseAmplitude*math.Sin(2*math.Pi*PulseHz*clock+e.phase-e.delay*math.Pi)
}

type leverEntity struct {
	look
	id        string
	target    string
	strength  float64
	phase     float64
	pos       geom.Vec3
	posTarget geom.Vec3
}

func newLever(l visual.Lever) *leverEntity {
	e := &leverEntity{id: l.ID, phase: phaseOf(l.ID), pos: l.Pos}
	e.set(l)
	return e
}

func (e *leverEntity) set(l visual.Lever) {
	e.target = l.Target
	e.strength = l.Strength
	e.posTarget = l.Pos
	e.baseScale = 0.5 + 0.5*l.Strength
	e.baseOpacity = 0.5 + 0.5*l.Strength
	e.baseEmissive = l.Strength
}

func (e *leverEntity) tick(lambda, dt float64) {
	e.pos = smoothing.DampVec3(e.pos, e.posTarget, lambda, dt)
	e.damp(lambda, dt)
}

type flowEntity struct {
	look
	id       string
	from, to string
	style    visual.FlowStyle
	color    string
	speed    float64
	progress float64 // normalized arc length in [0,1)
	arc      *geom.ArcTable
	a, c, b  geom.Vec3
}

func newFlow(f visual.Flow) *flowEntity {
	e := &flowEntity{id: f.ID, arc: geom.NewArcTable(ArcSegments), progress: phaseOf(f.ID) / (2 * math.Pi)}
	e.set(f)
	return e
}

func (e *flowEntity) set(f visual.Flow) {
	e.from = f.From
	e.to = f.To
	e.style = f.Type
	e.speed = f.Speed
	e.color = ""
	if f.Color != nil {
		e.color = *f.Color
	}
	intensity := 1.0
	if f.Intensity != nil {
		intensity = *f.Intensity
	}
	e.baseScale = 1
	e.baseOpacity = 0.3 + 0.7*intensity
	e.baseEmissive = intensity
}

// tick moves the marker a fixed world distance along the curve between the
// current endpoint positions.
func (e *flowEntity) tick(a, b geom.Vec3, lambda, dt float64) {
	e.a, e.b = a, b
	e.c = geom.ArcControl(a, b, FlowBow)
	e.arc.Rebuild(e.a, e.c, e.b)
	e.damp(lambda, dt)

	total := e.arc.Total()
	if total <= 0 {
		return
	}
	e.progress = math.Mod(e.progress+MaxFlowSpeed*min(1, e.speed)*dt/total, 1)
}

func (e *flowEntity) marker() geom.Vec3 {
	return geom.Bezier(e.a, e.c, e.b, e.arc.Param(e.progress))
}
