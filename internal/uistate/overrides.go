package uistate

import (
	"encoding/json"
	"maps"

	"github.com/vinayprograms/loopscope/internal/visual"
)

// DefaultDepth bounds the undo and redo stacks.
const DefaultDepth = 50

// Override replaces parts of an entity's appearance.
type Override struct {
	Color     string   `json:"color,omitempty"`
	Intensity *float64 `json:"intensity,omitempty"`
	Hidden    bool     `json:"hidden,omitempty"`
}

// Overrides maps entity id to its override. Values stored in a History are
// never mutated; every edit produces a new map.
type Overrides map[string]Override

// Apply returns a copy of st with overrides applied. Hidden nodes, loops and
// levers are removed; flows touching a hidden node are left for the renderer
// to drop as unresolved.
func (o Overrides) Apply(st visual.State) visual.State {
	if len(o) == 0 {
		return st
	}
	out := st
	out.Nodes = make([]visual.Node, 0, len(st.Nodes))
	for _, n := range st.Nodes {
		ov, ok := o[n.ID]
		if ok && ov.Hidden {
			continue
		}
		if ok {
			if ov.Color != "" {
				n.Color = ov.Color
			}
			if ov.Intensity != nil {
				n.Intensity = visual.Clamp01(*ov.Intensity)
			}
		}
		out.Nodes = append(out.Nodes, n)
	}

	out.Loops = make([]visual.Loop, 0, len(st.Loops))
	for _, l := range st.Loops {
		ov, ok := o[l.ID]
		if ok && ov.Hidden {
			continue
		}
		if ok && ov.Intensity != nil {
			l.Intensity = visual.Clamp01(*ov.Intensity)
		}
		out.Loops = append(out.Loops, l)
	}

	out.Levers = make([]visual.Lever, 0, len(st.Levers))
	for _, l := range st.Levers {
		if ov, ok := o[l.ID]; ok && ov.Hidden {
			continue
		}
		out.Levers = append(out.Levers, l)
	}

	if st.Flows != nil {
		out.Flows = make([]visual.Flow, 0, len(st.Flows))
		for _, f := range st.Flows {
			ov, ok := o[f.ID]
			if ok && ov.Hidden {
				continue
			}
			if ok && ov.Color != "" {
				c := ov.Color
				f.Color = &c
			}
			out.Flows = append(out.Flows, f)
		}
	}
	return out
}

// History is a bounded undo/redo stack of Overrides snapshots.
type History struct {
	depth   int
	past    []Overrides
	present Overrides
	future  []Overrides
}

// NewHistory creates an empty history. depth <= 0 uses DefaultDepth.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History{depth: depth, present: Overrides{}}
}

// Present returns the current overrides. Callers must not modify it.
func (h *History) Present() Overrides { return h.present }

// Push makes next the present state. The redo stack is discarded and the
// oldest undo entry is dropped beyond the depth limit.
func (h *History) Push(next Overrides) {
	h.past = append(h.past, h.present)
	if len(h.past) > h.depth {
		h.past = h.past[len(h.past)-h.depth:]
	}
	h.present = next
	h.future = nil
}

// Set records an override for id.
func (h *History) Set(id string, ov Override) {
	next := maps.Clone(h.present)
	next[id] = ov
	h.Push(next)
}

// Edit changes the override for id through fn.
func (h *History) Edit(id string, fn func(Override) Override) {
	h.Set(id, fn(h.present[id]))
}

// Remove drops the override for id. It records nothing when id has none.
func (h *History) Remove(id string) {
	if _, ok := h.present[id]; !ok {
		return
	}
	next := maps.Clone(h.present)
	delete(next, id)
	h.Push(next)
}

// Reset clears every override as one undoable step.
func (h *History) Reset() {
	if len(h.present) == 0 {
		return
	}
	h.Push(Overrides{})
}

// CanUndo reports whether Undo would change anything.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether Redo would change anything.
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Undo steps back one edit.
func (h *History) Undo() bool {
	if len(h.past) == 0 {
		return false
	}
	h.future = append(h.future, h.present)
	if len(h.future) > h.depth {
		h.future = h.future[len(h.future)-h.depth:]
	}
	h.present = h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	return true
}

// Redo re-applies the last undone edit.
func (h *History) Redo() bool {
	if len(h.future) == 0 {
		return false
	}
	h.past = append(h.past, h.present)
	h.present = h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	return true
}

type historyJSON struct {
	Past    []Overrides `json:"past"`
	Present Overrides   `json:"present"`
	Future  []Overrides `json:"future"`
}

// MarshalJSON encodes the full stack for persistence.
func (h *History) MarshalJSON() ([]byte, error) {
	return json.Marshal(historyJSON{Past: h.past, Present: h.present, Future: h.future})
}

// LoadHistory decodes a persisted stack. Corrupt or missing data yields an
// empty history; stacks longer than depth are trimmed.
func LoadHistory(data []byte, depth int) *History {
	h := NewHistory(depth)
	if len(data) == 0 {
		return h
	}
	var raw historyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return h
	}
	if raw.Present != nil {
		h.present = raw.Present
	}
	h.past = trim(raw.Past, h.depth)
	h.future = trim(raw.Future, h.depth)
	return h
}

func trim(s []Overrides, depth int) []Overrides {
	out := make([]Overrides, 0, min(len(s), depth))
	for _, o := range s[max(0, len(s)-depth):] {
		if o == nil {
			o = Overrides{}
		}
		out = append(out, o)
	}
	return out
}
