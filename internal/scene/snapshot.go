package scene

import (
	"github.com/vinayprograms/loopscope/internal/geom"
	"github.com/vinayprograms/loopscope/internal/visual"
)

// Camera is a perspective camera looking at Target.
type Camera struct {
	Pos    geom.Vec3
	Target geom.Vec3
	FOV    float64
}

// Light is a directional light.
type Light struct {
	Dir       geom.Vec3
	Intensity float64
}

var (
	DefaultCamera = Camera{Pos: geom.Vec3{0, 2.5, 8}, Target: geom.Vec3{0, 0, 0}, FOV: 50}
	DefaultLight  = Light{Dir: geom.Vec3{-0.4, -1, -0.6}, Intensity: 1}
)

// Snapshot is a read-only copy of the scene at one tick.
type Snapshot struct {
	Camera Camera
	Light  Light
	Focus  string

	// Fallback is set when the last payload was rejected. Only Camera, Light
	// and Diagnostic are meaningful then.
	Fallback   bool
	Diagnostic string

	Nodes  []NodeView
	Loops  []LoopView
	Levers []LeverView
	Flows  []FlowView
	Field  FieldView
}

type NodeView struct {
	ID       string
	Shape    visual.Shape
	Color    string
	Pos      geom.Vec3
	Scale    float64
	Opacity  float64
	Emissive float64
	Rotation float64
	Focused  bool
}

type LoopView struct {
	ID         string
	Type       visual.LoopType
	Center     geom.Vec3
	Radius     float64
	Opacity    float64
	Emissive   float64
	Rotation   float64
	Bottleneck float64
	Focused    bool
}

type LeverView struct {
	ID       string
	Target   string
	Pos      geom.Vec3
	Scale    float64
	Opacity  float64
	Emissive float64
	Focused  bool
}

// FlowView carries the curve control points and the marker position on it.
type FlowView struct {
	ID       string
	From, To string
	Style    visual.FlowStyle
	Color    string
	Start    geom.Vec3
	Control  geom.Vec3
	End      geom.Vec3
	Marker   geom.Vec3
	Progress float64
	Opacity  float64
	Focused  bool
}

type FieldView struct {
	Count     int
	Opacity   float64
	Particles []geom.Vec3
}
