// Package scene turns validated visual states into a smoothly animated,
// renderer-neutral scene. A Scene keeps one entity per id, eases every
// attribute toward its latest target on Tick, and exposes the result through
// Snapshot for whatever backend draws it.
package scene

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/vinayprograms/loopscope/internal/geom"
	"github.com/vinayprograms/loopscope/internal/logging"
	"github.com/vinayprograms/loopscope/internal/visual"
)

const (
	// DefaultLambda is the smoothing rate for all transitions.
	DefaultLambda = 6.0

	FocusScale    = 1.15
	FocusEmissive = 1.6
	DimOpacity    = 0.35
	DimEmissive   = 0.4

	MaxParticles       = 240
	MaxParticleOpacity = 0.35

	// Idle motion bounds.
	PulseAmplitude = 0.04
	PulseHz        = 0.25
	MaxSpin        = 0.6 // rad/s
	MaxDrift       = 0.35

	// Flow markers travel at most this many world units per second.
	MaxFlowSpeed = 1.5
	FlowBow      = 0.25
	ArcSegments  = 24

	FieldExtent = 6.0

	// Frames with a larger gap are treated as a resume, not a jump.
	maxTickDelta = 0.25
)

// ErrFrame is returned by Tick when a frame panicked and was recovered.
var ErrFrame = errors.New("scene frame failed")

// Scene is the animated scene graph. It is not safe for concurrent use.
type Scene struct {
	lambda  float64
	backend Backend
	logger  *logging.Logger

	nodes  map[string]*nodeEntity
	loops  map[string]*loopEntity
	levers map[string]*leverEntity
	flows  map[string]*flowEntity
	field  *field

	// Flows from the last state, including ones whose endpoints are missing.
	pendingFlows []visual.Flow

	focus      string
	focusKind  Kind
	fallback   bool
	diagnostic string
	clock      float64
	stats      Stats
}

// Stats counts resource lifecycle events.
type Stats struct {
	Created   int
	Released  int
	Live      int
	Ticks     int
	Recovered int
}

// Option configures a Scene.
type Option func(*Scene)

// WithLambda sets the smoothing rate.
func WithLambda(lambda float64) Option {
	return func(s *Scene) {
		if lambda > 0 && !math.IsInf(lambda, 0) {
			s.lambda = lambda
		}
	}
}

// WithBackend sets the resource owner notified on create and release.
func WithBackend(b Backend) Option {
	return func(s *Scene) {
		if b != nil {
			s.backend = b
		}
	}
}

// WithLogger sets the logger used for fallbacks and recovered frames.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scene) {
		s.logger = l
	}
}

// WithMaxParticles lowers the particle cap. It cannot exceed MaxParticles.
func WithMaxParticles(n int) Option {
	return func(s *Scene) {
		s.field = newField(n)
	}
}

// New creates an empty scene.
func New(opts ...Option) *Scene {
	s := &Scene{
		lambda:  DefaultLambda,
		backend: nopBackend{},
		logger:  logging.Discard(),
		nodes:   map[string]*nodeEntity{},
		loops:   map[string]*loopEntity{},
		levers:  map[string]*leverEntity{},
		flows:   map[string]*flowEntity{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.field == nil {
		s.field = newField(MaxParticles)
	}
	return s
}

// ApplyPayload validates raw JSON and applies it. A structural error puts
// the scene into fallback and is returned.
func (s *Scene) ApplyPayload(data []byte) error {
	st, err := visual.Parse(data)
	if err != nil {
		s.Fail(err)
		return err
	}
	s.Apply(st)
	return nil
}

// Apply sets a validated state as the new target. Entities whose ids are
// new are created, ids that disappeared are released, and the rest are
// retargeted in place.
func (s *Scene) Apply(st visual.State) {
	s.fallback = false
	s.diagnostic = ""

	seen := make(map[string]bool, len(st.Nodes))
	for _, n := range st.Nodes {
		seen[n.ID] = true
		if e, ok := s.nodes[n.ID]; ok {
			if e.shape != n.Shape {
				// Different geometry needs a fresh resource.
				s.release(KindNode, n.ID)
				s.create(KindNode, n.ID)
			}
			e.set(n)
			continue
		}
		s.nodes[n.ID] = newNode(n)
		s.create(KindNode, n.ID)
	}
	for id := range s.nodes {
		if !seen[id] {
			delete(s.nodes, id)
			s.release(KindNode, id)
		}
	}

	clear(seen)
	for _, l := range st.Loops {
		seen[l.ID] = true
		if e, ok := s.loops[l.ID]; ok {
			e.set(l)
			continue
		}
		s.loops[l.ID] = newLoop(l)
		s.create(KindLoop, l.ID)
	}
	for id := range s.loops {
		if !seen[id] {
			delete(s.loops, id)
			s.release(KindLoop, id)
		}
	}

	clear(seen)
	for _, l := range st.Levers {
		seen[l.ID] = true
		if e, ok := s.levers[l.ID]; ok {
			e.set(l)
			continue
		}
		s.levers[l.ID] = newLever(l)
		s.create(KindLever, l.ID)
	}
	for id := range s.levers {
		if !seen[id] {
			delete(s.levers, id)
			s.release(KindLever, id)
		}
	}

	s.pendingFlows = append(s.pendingFlows[:0], st.Flows...)
	s.syncFlows()

	s.field.set(st.Field)
	s.retarget()
}

// syncFlows keeps exactly the flows whose endpoints both resolve to nodes.
func (s *Scene) syncFlows() {
	keep := make(map[string]bool, len(s.pendingFlows))
	for _, f := range s.pendingFlows {
		_, okFrom := s.nodes[f.From]
		_, okTo := s.nodes[f.To]
		if !okFrom || !okTo {
			continue
		}
		keep[f.ID] = true
		if e, ok := s.flows[f.ID]; ok {
			e.set(f)
			continue
		}
		e := newFlow(f)
		e.tick(s.nodes[f.From].pos, s.nodes[f.To].pos, s.lambda, 0)
		s.flows[f.ID] = e
		s.create(KindFlow, f.ID)
	}
	for id := range s.flows {
		if !keep[id] {
			delete(s.flows, id)
			s.release(KindFlow, id)
		}
	}
}

// SetFocus selects the entity to emphasize. An empty id, or an id not in the
// scene, clears emphasis.
func (s *Scene) SetFocus(id string) {
	s.focus = id
	s.retarget()
}

// Focus returns the requested focus id.
func (s *Scene) Focus() string { return s.focus }

// resolveFocus finds the entity kind holding the focus id. Ids may repeat
// across kinds, so nodes win over loops, loops over levers and levers over
// flows.
func (s *Scene) resolveFocus() Kind {
	if s.focus == "" {
		return ""
	}
	if _, ok := s.nodes[s.focus]; ok {
		return KindNode
	}
	if _, ok := s.loops[s.focus]; ok {
		return KindLoop
	}
	if _, ok := s.levers[s.focus]; ok {
		return KindLever
	}
	if _, ok := s.flows[s.focus]; ok {
		return KindFlow
	}
	return ""
}

func (s *Scene) focused(kind Kind, id string) bool {
	return s.focusKind == kind && id == s.focus
}

func (s *Scene) retarget() {
	s.focusKind = s.resolveFocus()
	active := s.focusKind != ""
	for id, e := range s.nodes {
		on := s.focused(KindNode, id)
		e.retarget(on, active && !on)
	}
	for id, e := range s.loops {
		on := s.focused(KindLoop, id)
		e.retarget(on, active && !on)
	}
	for id, e := range s.levers {
		on := s.focused(KindLever, id)
		e.retarget(on, active && !on)
	}
	for id, e := range s.flows {
		on := s.focused(KindFlow, id)
		e.retarget(on, active && !on)
	}
}

// Fail drops every entity and shows the default scene with a diagnostic.
func (s *Scene) Fail(err error) {
	s.logger.SchemaRejected("scene", err)
	for id := range s.nodes {
		s.release(KindNode, id)
	}
	for id := range s.loops {
		s.release(KindLoop, id)
	}
	for id := range s.levers {
		s.release(KindLever, id)
	}
	for id := range s.flows {
		s.release(KindFlow, id)
	}
	clear(s.nodes)
	clear(s.loops)
	clear(s.levers)
	clear(s.flows)
	s.pendingFlows = s.pendingFlows[:0]
	s.field.set(nil)
	s.fallback = true
	s.diagnostic = err.Error()
}

// Fallback reports whether the scene is showing the fallback view.
func (s *Scene) Fallback() bool { return s.fallback }

// Tick advances every transition by dt seconds. A panic inside the frame is
// recovered, logged and returned as ErrFrame so the loop keeps running.
func (s *Scene) Tick(dt float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.stats.Recovered++
			s.logger.FrameRecovered("scene", r)
			err = fmt.Errorf("%w: %v", ErrFrame, r)
		}
	}()

	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		dt = 0
	}
	dt = min(dt, maxTickDelta)
	s.stats.Ticks++
	s.clock += dt

	for _, e := range s.nodes {
		e.tick(s.lambda, dt)
	}
	for _, e := range s.loops {
		e.tick(s.lambda, dt)
	}
	for _, e := range s.levers {
		e.tick(s.lambda, dt)
	}
	for _, e := range s.flows {
		from, to := s.nodes[e.from], s.nodes[e.to]
		e.tick(from.pos, to.pos, s.lambda, dt)
	}
	s.field.tick(s.lambda, dt)
	return nil
}

// Stats returns lifecycle counters.
func (s *Scene) Stats() Stats {
	st := s.stats
	st.Live = len(s.nodes) + len(s.loops) + len(s.levers) + len(s.flows)
	return st
}

func (s *Scene) create(kind Kind, id string) {
	s.stats.Created++
	s.backend.Create(kind, id)
}

func (s *Scene) release(kind Kind, id string) {
	s.stats.Released++
	s.backend.Release(kind, id)
}

// Snapshot captures the current animated values, sorted by id.
func (s *Scene) Snapshot() *Snapshot {
	snap := &Snapshot{
		Camera:     DefaultCamera,
		Light:      DefaultLight,
		Focus:      s.focus,
		Fallback:   s.fallback,
		Diagnostic: s.diagnostic,
	}
	if s.fallback {
		return snap
	}

	for _, e := range s.nodes {
		snap.Nodes = append(snap.Nodes, NodeView{
			ID:       e.id,
			Shape:    e.shape,
			Color:    e.color,
			Pos:      e.pos,
			Scale:    e.displayScale(s.clock),
			Opacity:  e.opacity,
			Emissive: e.emissive,
			Rotation: e.rotation,
			Focused:  s.focused(KindNode, e.id),
		})
	}
	for _, e := range s.loops {
		snap.Loops = append(snap.Loops, LoopView{
			ID:         e.id,
			Type:       e.kind,
			Center:     e.center,
			Radius:     e.radius * e.scale,
			Opacity:    e.opacity,
			Emissive:   e.emissive * e.pulse(s.clock),
			Rotation:   e.rotation,
			Bottleneck: e.bottleneck,
			Focused:    s.focused(KindLoop, e.id),
		})
	}
	for _, e := range s.levers {
		snap.Levers = append(snap.Levers, LeverView{
			ID:       e.id,
			Target:   e.target,
			Pos:      e.pos,
			Scale:    e.scale,
			Opacity:  e.opacity,
			Emissive: e.emissive,
			Focused:  s.focused(KindLever, e.id),
		})
	}
	for _, e := range s.flows {
		snap.Flows = append(snap.Flows, FlowView{
			ID:       e.id,
			From:     e.from,
			To:       e.to,
			Style:    e.style,
			Color:    e.color,
			Start:    e.a,
			Control:  e.c,
			End:      e.b,
			Marker:   e.marker(),
			Progress: e.progress,
			Opacity:  e.opacity,
			Focused:  s.focused(KindFlow, e.id),
		})
	}

	n := s.field.visible()
	snap.Field = FieldView{Count: n, Opacity: s.field.opacity}
	snap.Field.Particles = make([]geom.Vec3, n)
	for i := range n {
		snap.Field.Particles[i] = s.field.position(i, s.clock)
	}

	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	sort.Slice(snap.Loops, func(i, j int) bool { return snap.Loops[i].ID < snap.Loops[j].ID })
	sort.Slice(snap.Levers, func(i, j int) bool { return snap.Levers[i].ID < snap.Levers[j].ID })
	sort.Slice(snap.Flows, func(i, j int) bool { return snap.Flows[i].ID < snap.Flows[j].ID })
	return snap
}
