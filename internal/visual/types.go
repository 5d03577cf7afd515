// Package visual defines the VisualState scene description and the schema
// gate every payload passes through before it reaches the renderer.
package visual

import "github.com/vinayprograms/loopscope/internal/geom"

// Shape is the geometry used to draw a node.
type Shape string

const (
	ShapeSphere Shape = "sphere"
	ShapeBox    Shape = "box"
	ShapeIco    Shape = "ico"
	ShapeDodeca Shape = "dodeca"
)

// LoopType distinguishes reinforcing and balancing loops. Styling only.
type LoopType string

const (
	LoopReinforcing LoopType = "R"
	LoopBalancing   LoopType = "B"
)

// FlowStyle is how a flow is drawn between two nodes.
type FlowStyle string

const (
	FlowLine FlowStyle = "line"
	FlowTube FlowStyle = "tube"
)

// State is a full snapshot of the renderable scene at one instant.
type State struct {
	T      *float64 `json:"t,omitempty" yaml:"t,omitempty"`
	Focus  string   `json:"focus,omitempty" yaml:"focus,omitempty"`
	Nodes  []Node   `json:"nodes" yaml:"nodes"`
	Loops  []Loop   `json:"loops" yaml:"loops"`
	Levers []Lever  `json:"levers" yaml:"levers"`
	Flows  []Flow   `json:"flows,omitempty" yaml:"flows,omitempty"`
	Field  *Field   `json:"field,omitempty" yaml:"field,omitempty"`
}

// Node is a system element.
type Node struct {
	ID        string    `json:"id" yaml:"id"`
	Shape     Shape     `json:"shape" yaml:"shape"`
	Pos       geom.Vec3 `json:"pos" yaml:"pos"`
	Color     string    `json:"color" yaml:"color"`
	Intensity float64   `json:"intensity" yaml:"intensity"`
	Opacity   float64   `json:"opacity" yaml:"opacity"`
	Scale     *float64  `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// Loop is a feedback loop drawn as a ring.
type Loop struct {
	ID         string    `json:"id" yaml:"id"`
	Type       LoopType  `json:"type" yaml:"type"`
	Center     geom.Vec3 `json:"center" yaml:"center"`
	Radius     float64   `json:"radius" yaml:"radius"`
	Intensity  float64   `json:"intensity" yaml:"intensity"`
	FlowSpeed  float64   `json:"flowSpeed" yaml:"flowSpeed"`
	Bottleneck *float64  `json:"bottleneck,omitempty" yaml:"bottleneck,omitempty"`
	Delay      *float64  `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// Lever is a leverage point attached to a target entity.
type Lever struct {
	ID       string    `json:"id" yaml:"id"`
	Target   string    `json:"target" yaml:"target"`
	Pos      geom.Vec3 `json:"pos" yaml:"pos"`
	Strength float64   `json:"strength" yaml:"strength"`
}

// Flow connects two nodes with a travelling marker.
type Flow struct {
	ID        string    `json:"id" yaml:"id"`
	From      string    `json:"from" yaml:"from"`
	To        string    `json:"to" yaml:"to"`
	Type      FlowStyle `json:"type" yaml:"type"`
	Speed     float64   `json:"speed" yaml:"speed"`
	Intensity *float64  `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	Color     *string   `json:"color,omitempty" yaml:"color,omitempty"`
}

// Field drives the ambient particle field.
type Field struct {
	Chaos    float64 `json:"chaos" yaml:"chaos"`
	Density  float64 `json:"density" yaml:"density"`
	NoiseAmp float64 `json:"noiseAmp" yaml:"noiseAmp"`
}

// Empty returns a valid state with nothing in it.
func Empty() State {
	return State{
		Nodes:  []Node{},
		Loops:  []Loop{},
		Levers: []Lever{},
	}
}

// Node returns the node with the given id.
func (s State) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// HasEntity reports whether any node, loop, lever or flow carries id.
func (s State) HasEntity(id string) bool {
	if id == "" {
		return false
	}
	for _, n := range s.Nodes {
		if n.ID == id {
			return true
		}
	}
	for _, l := range s.Loops {
		if l.ID == id {
			return true
		}
	}
	for _, l := range s.Levers {
		if l.ID == id {
			return true
		}
	}
	for _, f := range s.Flows {
		if f.ID == id {
			return true
		}
	}
	return false
}
