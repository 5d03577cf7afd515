package scene

import (
	"errors"
	"math"
	"testing"

	"github.com/vinayprograms/loopscope/internal/geom"
	"github.com/vinayprograms/loopscope/internal/visual"
)

type recordingBackend struct {
	created  map[string]int
	released map[string]int
}

func newRecorder() *recordingBackend {
	return &recordingBackend{created: map[string]int{}, released: map[string]int{}}
}

func (r *recordingBackend) Create(kind Kind, id string)  { r.created[string(kind)+":"+id]++ }
func (r *recordingBackend) Release(kind Kind, id string) { r.released[string(kind)+":"+id]++ }

func node(id string, pos geom.Vec3, intensity, opacity float64) visual.Node {
	return visual.Node{ID: id, Shape: visual.ShapeSphere, Pos: pos, Color: "#ffffff", Intensity: intensity, Opacity: opacity}
}

func twoNodes() visual.State {
	st := visual.Empty()
	st.Nodes = []visual.Node{
		node("a", geom.Vec3{0, 0, 0}, 0.5, 0.8),
		node("b", geom.Vec3{4, 0, 0}, 0.5, 0.8),
	}
	return st
}

// settle ticks long enough for every transition to converge.
func settle(s *Scene) {
	for range 400 {
		s.Tick(0.05)
	}
}

func nodeView(t *testing.T, snap *Snapshot, id string) NodeView {
	t.Helper()
	for _, n := range snap.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %q not in snapshot", id)
	return NodeView{}
}

func TestScene_NoHardCuts(t *testing.T) {
	s := New()
	s.Apply(twoNodes())

	first := nodeView(t, s.Snapshot(), "a")
	if first.Opacity != 0 {
		t.Errorf("new entity should fade in from 0, got %v", first.Opacity)
	}

	s.Tick(0.016)
	mid := nodeView(t, s.Snapshot(), "a")
	if mid.Opacity <= 0 || mid.Opacity >= 0.8 {
		t.Errorf("expected partial opacity after one tick, got %v", mid.Opacity)
	}

	settle(s)
	if got := nodeView(t, s.Snapshot(), "a").Opacity; math.Abs(got-0.8) > 1e-6 {
		t.Errorf("expected opacity to converge to 0.8, got %v", got)
	}
}

func TestScene_PositionEases(t *testing.T) {
	s := New()
	s.Apply(twoNodes())
	settle(s)

	moved := twoNodes()
	moved.Nodes[0].Pos = geom.Vec3{0, 10, 0}
	s.Apply(moved)
	s.Tick(0.016)

	y := nodeView(t, s.Snapshot(), "a").Pos[1]
	if y <= 0 || y >= 10 {
		t.Errorf("expected eased position, got y=%v", y)
	}
}

func TestScene_FocusBoostAndDim(t *testing.T) {
	s := New()
	s.Apply(twoNodes())
	s.SetFocus("a")
	settle(s)

	snap := s.Snapshot()
	a, b := nodeView(t, snap, "a"), nodeView(t, snap, "b")

	if !a.Focused || b.Focused {
		t.Error("expected only a to be focused")
	}
	if math.Abs(a.Emissive-0.5*FocusEmissive) > 1e-6 {
		t.Errorf("focused emissive = %v, want %v", a.Emissive, 0.5*FocusEmissive)
	}
	if math.Abs(a.Opacity-0.8) > 1e-6 {
		t.Errorf("focused opacity should stay at its own target, got %v", a.Opacity)
	}
	if math.Abs(b.Opacity-0.8*DimOpacity) > 1e-6 {
		t.Errorf("dimmed opacity = %v, want %v", b.Opacity, 0.8*DimOpacity)
	}
	if math.Abs(b.Emissive-0.5*DimEmissive) > 1e-6 {
		t.Errorf("dimmed emissive = %v, want %v", b.Emissive, 0.5*DimEmissive)
	}
	// Pulse stays within its amplitude around the boosted scale.
	if math.Abs(a.Scale-FocusScale) > FocusScale*PulseAmplitude+1e-6 {
		t.Errorf("focused scale = %v, want about %v", a.Scale, FocusScale)
	}
}

func TestScene_UnknownFocusDoesNotDim(t *testing.T) {
	s := New()
	s.Apply(twoNodes())
	s.SetFocus("ghost")
	settle(s)

	if got := nodeView(t, s.Snapshot(), "b").Opacity; math.Abs(got-0.8) > 1e-6 {
		t.Errorf("focus on a missing id should not dim, got %v", got)
	}
}

func TestScene_FocusPrefersNodeOnSharedID(t *testing.T) {
	shared := func() visual.State {
		st := visual.Empty()
		st.Nodes = []visual.Node{node("a", geom.Vec3{0, 0, 0}, 0.5, 0.8)}
		st.Loops = []visual.Loop{{ID: "a", Type: visual.LoopReinforcing, Radius: 1, Intensity: 0.5, FlowSpeed: 1}}
		return st
	}
	plain, focused := New(), New()
	plain.Apply(shared())
	focused.Apply(shared())
	focused.SetFocus("a")
	settle(plain)
	settle(focused)

	snap := focused.Snapshot()
	if !nodeView(t, snap, "a").Focused {
		t.Error("expected the node to hold the focus")
	}
	if len(snap.Loops) != 1 || snap.Loops[0].Focused {
		t.Fatalf("expected one unfocused loop, got %+v", snap.Loops)
	}
	base := plain.Snapshot().Loops[0]
	if math.Abs(snap.Loops[0].Radius-base.Radius) > 1e-6 {
		t.Errorf("loop sharing the focus id was boosted: radius %v, want %v", snap.Loops[0].Radius, base.Radius)
	}
	if math.Abs(snap.Loops[0].Opacity-base.Opacity*DimOpacity) > 1e-6 {
		t.Errorf("loop opacity = %v, want dimmed %v", snap.Loops[0].Opacity, base.Opacity*DimOpacity)
	}
}

func TestScene_ResourcesReusedAndReleased(t *testing.T) {
	rec := newRecorder()
	s := New(WithBackend(rec))

	s.Apply(twoNodes())
	for range 5 {
		s.Apply(twoNodes())
		s.Tick(0.016)
	}
	if rec.created["node:a"] != 1 || rec.created["node:b"] != 1 {
		t.Errorf("expected one create per id, got %v", rec.created)
	}

	onlyA := visual.Empty()
	onlyA.Nodes = []visual.Node{twoNodes().Nodes[0]}
	s.Apply(onlyA)
	if rec.released["node:b"] != 1 {
		t.Errorf("expected b released, got %v", rec.released)
	}
	if rec.released["node:a"] != 0 {
		t.Error("a should not be released")
	}
	if st := s.Stats(); st.Live != 1 || st.Created != 2 || st.Released != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestScene_ShapeChangeRecreates(t *testing.T) {
	rec := newRecorder()
	s := New(WithBackend(rec))
	s.Apply(twoNodes())

	changed := twoNodes()
	changed.Nodes[0].Shape = visual.ShapeBox
	s.Apply(changed)

	if rec.created["node:a"] != 2 || rec.released["node:a"] != 1 {
		t.Errorf("expected recreate on shape change: created=%v released=%v", rec.created, rec.released)
	}
}

func TestScene_UnresolvedFlowOmitted(t *testing.T) {
	rec := newRecorder()
	s := New(WithBackend(rec))

	st, err := visual.Parse([]byte(`{
	  "nodes": [{"id": "a", "shape": "sphere", "pos": [0,0,0], "color": "#fff", "intensity": 1, "opacity": 1}],
	  "loops": [], "levers": [],
	  "flows": [{"id": "f", "from": "a", "to": "ghost", "type": "line", "speed": 1}]
	}`))
	if err != nil {
		t.Fatalf("unresolved flow should parse: %v", err)
	}

	s.Apply(st)
	if err := s.Tick(0.016); err != nil {
		t.Fatalf("tick: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Flows) != 0 {
		t.Errorf("expected flow to be omitted, got %+v", snap.Flows)
	}
	if rec.created["flow:f"] != 0 {
		t.Error("no resource should be created for an unresolved flow")
	}
	if snap.Fallback {
		t.Error("unresolved flow is not a structural error")
	}
}

func TestScene_FlowResolvesWhenNodeAppears(t *testing.T) {
	s := New()
	st := twoNodes()
	st.Flows = []visual.Flow{{ID: "f", From: "a", To: "c", Type: visual.FlowTube, Speed: 1}}
	s.Apply(st)
	if len(s.Snapshot().Flows) != 0 {
		t.Fatal("flow to missing node should be omitted")
	}

	st.Nodes = append(st.Nodes, node("c", geom.Vec3{0, 0, 4}, 1, 1))
	s.Apply(st)
	if len(s.Snapshot().Flows) != 1 {
		t.Error("flow should appear once both endpoints exist")
	}
}

func TestScene_FlowMarkerConstantSpeed(t *testing.T) {
	s := New()
	st := twoNodes()
	st.Flows = []visual.Flow{{ID: "f", From: "a", To: "b", Type: visual.FlowLine, Speed: 1}}
	s.Apply(st)
	settle(s)

	const dt = 0.01
	var steps []float64
	prev := s.Snapshot().Flows[0]
	for range 40 {
		s.Tick(dt)
		cur := s.Snapshot().Flows[0]
		if cur.Progress < prev.Progress {
			// Wrapped around; skip this step.
			prev = cur
			continue
		}
		steps = append(steps, cur.Marker.Sub(prev.Marker).Len())
		prev = cur
	}

	want := MaxFlowSpeed * dt
	for i, d := range steps {
		if math.Abs(d-want) > want*0.1 {
			t.Errorf("step %d moved %v, want about %v", i, d, want)
		}
	}
}

func TestScene_FlowEndpointsTrackSmoothedNodes(t *testing.T) {
	s := New()
	st := twoNodes()
	st.Flows = []visual.Flow{{ID: "f", From: "a", To: "b", Type: visual.FlowLine, Speed: 0.5}}
	s.Apply(st)
	settle(s)

	st.Nodes[1].Pos = geom.Vec3{8, 0, 0}
	s.Apply(st)
	s.Tick(0.016)

	snap := s.Snapshot()
	if snap.Flows[0].End != nodeView(t, snap, "b").Pos {
		t.Errorf("flow end %v should match smoothed node position %v", snap.Flows[0].End, nodeView(t, snap, "b").Pos)
	}
}

func TestScene_FieldCaps(t *testing.T) {
	s := New()
	st := twoNodes()
	st.Field = &visual.Field{Chaos: 1, Density: 1, NoiseAmp: 1}
	s.Apply(st)
	settle(s)

	snap := s.Snapshot()
	if snap.Field.Count != MaxParticles || len(snap.Field.Particles) != MaxParticles {
		t.Errorf("expected %d particles, got %d", MaxParticles, snap.Field.Count)
	}
	if snap.Field.Opacity > MaxParticleOpacity+1e-9 {
		t.Errorf("particle opacity %v exceeds cap", snap.Field.Opacity)
	}

	// Unnormalized magnitudes still respect the caps.
	st.Field = &visual.Field{Chaos: 50, Density: 50, NoiseAmp: 50}
	s.Apply(st)
	settle(s)
	snap = s.Snapshot()
	if snap.Field.Count > MaxParticles || snap.Field.Opacity > MaxParticleOpacity+1e-9 {
		t.Errorf("caps exceeded: %+v", snap.Field)
	}
}

func TestScene_WithMaxParticles(t *testing.T) {
	s := New(WithMaxParticles(10_000))
	st := twoNodes()
	st.Field = &visual.Field{Density: 1}
	s.Apply(st)
	settle(s)
	if got := s.Snapshot().Field.Count; got != MaxParticles {
		t.Errorf("configured limit must not exceed the hard cap, got %d", got)
	}
}

func TestScene_DeterministicPhases(t *testing.T) {
	run := func() *Snapshot {
		s := New()
		st := twoNodes()
		st.Field = &visual.Field{Chaos: 0.5, Density: 0.5, NoiseAmp: 0.5}
		s.Apply(st)
		for range 37 {
			s.Tick(0.033)
		}
		return s.Snapshot()
	}
	a, b := run(), run()
	if nodeView(t, a, "a").Scale != nodeView(t, b, "a").Scale {
		t.Error("idle motion should be deterministic")
	}
	for i := range a.Field.Particles {
		if a.Field.Particles[i] != b.Field.Particles[i] {
			t.Fatal("particle layout should be deterministic")
		}
	}
	if phaseOf("a") == phaseOf("b") {
		t.Error("different ids should get different phases")
	}
}

func TestScene_FallbackOnStructuralError(t *testing.T) {
	rec := newRecorder()
	s := New(WithBackend(rec))
	s.Apply(twoNodes())

	err := s.ApplyPayload([]byte(`{"nodes": [{"id": "a", "shape": "cone"}]}`))
	var se *visual.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected schema error, got %v", err)
	}

	snap := s.Snapshot()
	if !snap.Fallback || snap.Diagnostic == "" {
		t.Error("expected fallback with a diagnostic")
	}
	if len(snap.Nodes) != 0 {
		t.Error("fallback must not render partial entities")
	}
	if snap.Camera != DefaultCamera {
		t.Error("fallback should use the default camera")
	}
	if rec.released["node:a"] != 1 || rec.released["node:b"] != 1 {
		t.Errorf("fallback should release entities, got %v", rec.released)
	}
	if err := s.Tick(0.016); err != nil {
		t.Errorf("tick in fallback: %v", err)
	}

	s.Apply(twoNodes())
	if s.Fallback() {
		t.Error("a valid state should leave fallback")
	}
}

func TestScene_TickRecoversPanics(t *testing.T) {
	s := New()
	s.Apply(twoNodes())
	// Corrupt internal state so the next tick panics.
	s.flows["bad"] = &flowEntity{id: "bad", from: "nope", to: "nope"}

	err := s.Tick(0.016)
	if !errors.Is(err, ErrFrame) {
		t.Fatalf("expected ErrFrame, got %v", err)
	}
	if s.Stats().Recovered != 1 {
		t.Errorf("expected one recovered frame, got %d", s.Stats().Recovered)
	}

	delete(s.flows, "bad")
	if err := s.Tick(0.016); err != nil {
		t.Errorf("loop should keep running: %v", err)
	}
}

func TestScene_BadDeltaIgnored(t *testing.T) {
	s := New()
	s.Apply(twoNodes())
	for _, dt := range []float64{math.NaN(), math.Inf(1), -1} {
		if err := s.Tick(dt); err != nil {
			t.Fatalf("tick(%v): %v", dt, err)
		}
	}
	if got := nodeView(t, s.Snapshot(), "a").Opacity; got != 0 {
		t.Errorf("bad deltas should not advance, got opacity %v", got)
	}
}

func TestScene_LoopDirection(t *testing.T) {
	s := New()
	st := visual.Empty()
	st.Loops = []visual.Loop{
		{ID: "r", Type: visual.LoopReinforcing, Radius: 1, Intensity: 1, FlowSpeed: 1},
		{ID: "b", Type: visual.LoopBalancing, Radius: 1, Intensity: 1, FlowSpeed: 1},
	}
	s.Apply(st)
	s.Tick(0.1)

	snap := s.Snapshot()
	var r, b LoopView
	for _, l := range snap.Loops {
		switch l.ID {
		case "r":
			r = l
		case "b":
			b = l
		}
	}
	if r.Rotation <= 0 || b.Rotation >= 0 {
		t.Errorf("expected opposite spin, got r=%v b=%v", r.Rotation, b.Rotation)
	}
}
