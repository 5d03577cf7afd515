package replaystore

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/vinayprograms/loopscope/internal/geom"
	"github.com/vinayprograms/loopscope/internal/replay"
	"github.com/vinayprograms/loopscope/internal/visual"
)

// demoStep is the spacing between demo frames in seconds.
const demoStep = 1.5

// demo is a scripted episode. pressure drives every magnitude in the
// generated scene; the lever appears from leverAt onward.
type demo struct {
	title    string
	lines    []string
	pressure []float64
	leverAt  int
	nodes    []visual.Node
	loops    []visual.Loop
	flows    []visual.Flow
	lever    visual.Lever
	focus    []string
}

var demos = map[string]demo{
	"growth": {
		title: "Demo: Limits to Growth",
		lines: []string{
			"We are growing quickly with steady demand.",
			"Delivery is slowing down as workload increases.",
			"Resource overload builds and quality issues are rising.",
			"Latency keeps climbing as we push harder.",
			"The constraint becomes visible and growth stalls.",
			"We introduce a capacity lever and stabilize throughput.",
			"Flow improves and quality starts recovering.",
			"Growth resumes with steadier delivery.",
		},
		pressure: []float64{0.2, 0.35, 0.55, 0.7, 0.85, 0.6, 0.4, 0.3},
		leverAt:  5,
		nodes: []visual.Node{
			{ID: "growth", Shape: visual.ShapeSphere, Pos: geom.Vec3{-2, 0, 0}, Color: "#4ade80"},
			{ID: "capacity", Shape: visual.ShapeBox, Pos: geom.Vec3{2, 0, 0}, Color: "#f59e0b"},
			{ID: "quality", Shape: visual.ShapeIco, Pos: geom.Vec3{0, 1.5, -1}, Color: "#60a5fa"},
		},
		loops: []visual.Loop{
			{ID: "R1", Type: visual.LoopReinforcing, Center: geom.Vec3{-2, 0, 0}, Radius: 1.2},
			{ID: "B1", Type: visual.LoopBalancing, Center: geom.Vec3{2, 0, 0}, Radius: 1.0},
		},
		flows: []visual.Flow{
			{ID: "f-growth-capacity", From: "growth", To: "capacity", Type: visual.FlowTube},
			{ID: "f-capacity-quality", From: "capacity", To: "quality", Type: visual.FlowLine},
		},
		lever: visual.Lever{ID: "lever-capacity", Target: "capacity", Pos: geom.Vec3{2, -1.5, 0}},
		focus: []string{"growth", "growth", "capacity", "capacity", "B1", "lever-capacity", "quality", "growth"},
	},
	"fixes": {
		title: "Demo: Fixes that Fail",
		lines: []string{
			"Operations are stable but small issues appear.",
			"We push quick fixes to reduce symptoms.",
			"Short-term relief improves output briefly.",
			"Side effects keep returning and rework grows.",
			"The underlying problem strengthens the failure loop.",
			"We slow changes and invest in a fundamental fix.",
			"Symptoms decline and stability improves.",
		},
		pressure: []float64{0.25, 0.45, 0.35, 0.65, 0.85, 0.55, 0.3},
		leverAt:  5,
		nodes: []visual.Node{
			{ID: "symptom", Shape: visual.ShapeSphere, Pos: geom.Vec3{-2, 0.5, 0}, Color: "#f87171"},
			{ID: "quick-fix", Shape: visual.ShapeBox, Pos: geom.Vec3{0, -1, 0}, Color: "#fbbf24"},
			{ID: "side-effect", Shape: visual.ShapeDodeca, Pos: geom.Vec3{2, 0.5, 0}, Color: "#a78bfa"},
		},
		loops: []visual.Loop{
			{ID: "B1", Type: visual.LoopBalancing, Center: geom.Vec3{-1, -0.25, 0}, Radius: 1.1},
			{ID: "R1", Type: visual.LoopReinforcing, Center: geom.Vec3{1, -0.25, 0}, Radius: 1.3},
		},
		flows: []visual.Flow{
			{ID: "f-symptom-fix", From: "symptom", To: "quick-fix", Type: visual.FlowLine},
			{ID: "f-fix-side", From: "quick-fix", To: "side-effect", Type: visual.FlowTube},
			{ID: "f-side-symptom", From: "side-effect", To: "symptom", Type: visual.FlowLine},
		},
		lever: visual.Lever{ID: "lever-fundamental", Target: "symptom", Pos: geom.Vec3{-2, 2, 0}},
		focus: []string{"symptom", "quick-fix", "B1", "side-effect", "R1", "lever-fundamental", "symptom"},
	},
	"escalation": {
		title: "Demo: Escalation",
		lines: []string{
			"Teams are aligned with manageable tension.",
			"Pressure rises and decisions become reactive.",
			"Each side responds to the other with faster moves.",
			"Conflict escalates and volatility increases.",
			"Reaction loops dominate the system dynamics.",
			"We introduce a cooling-off step and shared goals.",
			"Responses slow down and coordination improves.",
			"Escalation eases and stability returns.",
		},
		pressure: []float64{0.15, 0.35, 0.55, 0.75, 0.9, 0.65, 0.4, 0.2},
		leverAt:  5,
		nodes: []visual.Node{
			{ID: "team-a", Shape: visual.ShapeIco, Pos: geom.Vec3{-2.5, 0, 0}, Color: "#38bdf8"},
			{ID: "team-b", Shape: visual.ShapeIco, Pos: geom.Vec3{2.5, 0, 0}, Color: "#fb7185"},
		},
		loops: []visual.Loop{
			{ID: "R1", Type: visual.LoopReinforcing, Center: geom.Vec3{0, 0, 0}, Radius: 1.6},
		},
		flows: []visual.Flow{
			{ID: "f-a-b", From: "team-a", To: "team-b", Type: visual.FlowTube},
			{ID: "f-b-a", From: "team-b", To: "team-a", Type: visual.FlowTube},
		},
		lever: visual.Lever{ID: "lever-cooling", Target: "team-a", Pos: geom.Vec3{0, -2, 0}},
		focus: []string{"team-a", "team-b", "R1", "R1", "R1", "lever-cooling", "team-b", "team-a"},
	},
}

// DemoPresets lists the preset ids SeedDemo accepts, sorted.
func DemoPresets() []string {
	return slices.Sorted(maps.Keys(demos))
}

// DemoTitle returns the episode title for a preset.
func DemoTitle(preset string) (string, bool) {
	d, ok := demos[preset]
	return d.title, ok
}

// state builds the scene for step i.
func (d demo) state(i int) visual.State {
	p := d.pressure[i]
	st := visual.State{
		Nodes:  make([]visual.Node, len(d.nodes)),
		Loops:  make([]visual.Loop, len(d.loops)),
		Levers: []visual.Lever{},
		Flows:  make([]visual.Flow, len(d.flows)),
		Field:  &visual.Field{Chaos: p * p, Density: p, NoiseAmp: 0.5 * p},
	}
	if i < len(d.focus) {
		st.Focus = d.focus[i]
	}
	for j, n := range d.nodes {
		n.Intensity = 0.3 + 0.7*p
		n.Opacity = 0.6 + 0.4*p
		scale := 0.8 + 0.4*p
		n.Scale = &scale
		st.Nodes[j] = n
	}
	for j, l := range d.loops {
		bottleneck := p * 0.8
		delay := 0.2 * float64(j+1)
		if l.Type == visual.LoopReinforcing {
			l.Intensity = p
			l.FlowSpeed = 0.3 + p
		} else {
			l.Intensity = 1 - p
			l.FlowSpeed = 0.5
		}
		l.Bottleneck = &bottleneck
		l.Delay = &delay
		st.Loops[j] = l
	}
	for j, f := range d.flows {
		f.Speed = 0.2 + 0.8*p
		intensity := p
		f.Intensity = &intensity
		st.Flows[j] = f
	}
	if i >= d.leverAt {
		lv := d.lever
		lv.Strength = 1 - p
		st.Levers = append(st.Levers, lv)
	}
	return st
}

// frame builds the recorded frame for step i, validated like any payload.
func (d demo) frame(i int) (replay.Frame, error) {
	st, err := visual.Validate(d.state(i))
	if err != nil {
		return replay.Frame{}, err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return replay.Frame{}, err
	}
	p := d.pressure[i]
	return replay.Frame{
		T:         float64(i+1) * demoStep,
		InputText: d.lines[i],
		SystemSignals: map[string]float64{
			"pressure":   p,
			"throughput": 1 - p,
			"volatility": p * p,
		},
		Visual: raw,
		Meta:   replay.Meta{Tags: []string{"demo"}},
	}, nil
}
