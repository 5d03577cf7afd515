package uistate

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vinayprograms/loopscope/internal/visual"
)

func TestContainer_GetSetSubscribe(t *testing.T) {
	c := NewContainer(1)
	var seen []int
	unsub := c.Subscribe(func(v int) { seen = append(seen, v) })

	c.Set(2)
	c.Update(func(v int) int { return v * 10 })
	if c.Get() != 20 {
		t.Errorf("expected 20, got %d", c.Get())
	}
	if diff := cmp.Diff([]int{2, 20}, seen); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}

	unsub()
	c.Set(3)
	if len(seen) != 2 {
		t.Error("unsubscribed callback still called")
	}
}

func TestContainer_SubscriberOrder(t *testing.T) {
	c := NewContainer("")
	var order []string
	c.Subscribe(func(string) { order = append(order, "first") })
	c.Subscribe(func(string) { order = append(order, "second") })
	c.Set("x")
	if diff := cmp.Diff([]string{"first", "second"}, order); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestHistory_UndoRedo(t *testing.T) {
	h := NewHistory(0)
	if h.CanUndo() || h.CanRedo() {
		t.Fatal("new history should have nothing to undo")
	}

	h.Set("a", Override{Color: "#f00"})
	h.Set("b", Override{Hidden: true})
	if len(h.Present()) != 2 {
		t.Fatalf("expected 2 overrides, got %v", h.Present())
	}

	if !h.Undo() || len(h.Present()) != 1 {
		t.Errorf("undo should remove b, got %v", h.Present())
	}
	if !h.Redo() || !h.Present()["b"].Hidden {
		t.Errorf("redo should restore b, got %v", h.Present())
	}

	h.Undo()
	h.Set("c", Override{Color: "#0f0"})
	if h.CanRedo() {
		t.Error("a new edit should discard redo")
	}
}

func TestHistory_SnapshotsAreImmutable(t *testing.T) {
	h := NewHistory(0)
	h.Set("a", Override{Color: "#f00"})
	before := h.Present()
	h.Edit("a", func(o Override) Override { o.Color = "#00f"; return o })

	if before["a"].Color != "#f00" {
		t.Error("earlier snapshot was mutated")
	}
	h.Undo()
	if h.Present()["a"].Color != "#f00" {
		t.Errorf("undo should restore the earlier color, got %q", h.Present()["a"].Color)
	}
}

func TestHistory_BoundedDepth(t *testing.T) {
	h := NewHistory(50)
	for i := range 120 {
		v := float64(i) / 120
		h.Set("a", Override{Intensity: &v})
	}
	undos := 0
	for h.Undo() {
		undos++
	}
	if undos != 50 {
		t.Errorf("expected 50 undo steps, got %d", undos)
	}
	redos := 0
	for h.Redo() {
		redos++
	}
	if redos != 50 {
		t.Errorf("expected 50 redo steps, got %d", redos)
	}
}

func TestHistory_RemoveAndReset(t *testing.T) {
	h := NewHistory(0)
	h.Remove("missing")
	if h.CanUndo() {
		t.Error("removing a missing id should not record a step")
	}
	h.Set("a", Override{Hidden: true})
	h.Remove("a")
	if len(h.Present()) != 0 {
		t.Error("expected a removed")
	}
	h.Set("b", Override{Hidden: true})
	h.Reset()
	if len(h.Present()) != 0 {
		t.Error("expected reset")
	}
	h.Undo()
	if !h.Present()["b"].Hidden {
		t.Error("reset should be undoable")
	}
}

func TestHistory_PersistRoundTrip(t *testing.T) {
	h := NewHistory(0)
	h.Set("a", Override{Color: "#abc"})
	h.Set("b", Override{Hidden: true})
	h.Undo()

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	got := LoadHistory(data, 0)
	if diff := cmp.Diff(h.Present(), got.Present()); diff != "" {
		t.Errorf("present (-want +got):\n%s", diff)
	}
	if !got.CanUndo() || !got.CanRedo() {
		t.Error("stacks should survive persistence")
	}
}

func TestLoadHistory_CorruptResets(t *testing.T) {
	for _, data := range []string{"", "{", `"nope"`, `{"present": 3}`} {
		h := LoadHistory([]byte(data), 0)
		if len(h.Present()) != 0 || h.CanUndo() {
			t.Errorf("corrupt data %q should reset, got %v", data, h.Present())
		}
	}
}

func TestOverrides_Apply(t *testing.T) {
	half := 0.5
	big := 3.0
	st := visual.State{
		Nodes: []visual.Node{
			{ID: "a", Color: "#fff", Intensity: 1},
			{ID: "b", Color: "#fff", Intensity: 1},
			{ID: "c", Color: "#fff", Intensity: 1},
		},
		Loops:  []visual.Loop{{ID: "l", Intensity: 1}},
		Levers: []visual.Lever{{ID: "v", Target: "a"}},
		Flows:  []visual.Flow{{ID: "f", From: "a", To: "b"}},
	}
	o := Overrides{
		"a": {Color: "#123456", Intensity: &half},
		"b": {Hidden: true},
		"c": {Intensity: &big},
		"l": {Intensity: &half},
		"v": {Hidden: true},
		"f": {Color: "#999"},
	}

	out := o.Apply(st)
	if len(out.Nodes) != 2 || out.Nodes[0].Color != "#123456" || out.Nodes[0].Intensity != 0.5 {
		t.Errorf("unexpected nodes: %+v", out.Nodes)
	}
	if out.Nodes[1].Intensity != 1 {
		t.Errorf("override intensity should be clamped, got %v", out.Nodes[1].Intensity)
	}
	if out.Loops[0].Intensity != 0.5 || len(out.Levers) != 0 {
		t.Errorf("unexpected loops/levers: %+v %+v", out.Loops, out.Levers)
	}
	if *out.Flows[0].Color != "#999" {
		t.Errorf("expected flow color override")
	}
	if st.Nodes[0].Color != "#fff" || st.Flows[0].Color != nil {
		t.Error("Apply mutated its input")
	}
}
