package replay

import (
	"encoding/json"
	"math"
	"testing"
)

func frameAt(t float64, note string) Frame {
	return Frame{T: t, Meta: Meta{Note: note}, Visual: json.RawMessage(`{"nodes":[],"loops":[],"levers":[]}`)}
}

func TestFrameStore_SortsStable(t *testing.T) {
	store := NewFrameStore([]Frame{
		frameAt(2, "c"),
		frameAt(0, "a"),
		frameAt(2, "d"),
		frameAt(1, "b"),
		frameAt(2, "e"),
	})

	var notes string
	for _, f := range store.SortedFrames() {
		notes += f.Meta.Note
	}
	if notes != "abcde" {
		t.Errorf("expected stable order abcde, got %s", notes)
	}
}

func TestFrameStore_DoesNotMutateInput(t *testing.T) {
	in := []Frame{frameAt(3, "x"), frameAt(1, "y")}
	NewFrameStore(in)
	if in[0].T != 3 {
		t.Error("input slice was reordered")
	}
}

func TestFrameStore_SortedFramesIsCopy(t *testing.T) {
	store := NewFrameStore([]Frame{frameAt(0, "a")})
	frames := store.SortedFrames()
	frames[0].T = 99
	if f, _ := store.Frame(0); f.T != 0 {
		t.Error("mutating the returned slice changed the store")
	}
}

func TestFrameIndexAtTime(t *testing.T) {
	store := NewFrameStore([]Frame{frameAt(0, ""), frameAt(2, ""), frameAt(5, "")})

	tests := []struct {
		t    float64
		want int
	}{
		{-1, 0},
		{0, 0},
		{1.99, 0},
		{2, 1},
		{3, 1},
		{4.999, 1},
		{5, 2},
		{100, 2},
		{math.Inf(1), 2},
	}
	for _, tt := range tests {
		if got := store.FrameIndexAtTime(tt.t); got != tt.want {
			t.Errorf("FrameIndexAtTime(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestFrameIndexAtTime_NeverFromFuture(t *testing.T) {
	store := NewFrameStore([]Frame{frameAt(0.5, ""), frameAt(1.0, ""), frameAt(1.0, ""), frameAt(4.25, "")})
	for q := 0.0; q <= 5; q += 0.05 {
		i := store.FrameIndexAtTime(q)
		f, _ := store.Frame(i)
		if f.T > q && i != 0 {
			t.Fatalf("query %v returned frame %d at t=%v", q, i, f.T)
		}
		if next, ok := store.Frame(i + 1); ok && next.T <= q {
			t.Fatalf("query %v returned %d but frame %d at t=%v also qualifies", q, i, i+1, next.T)
		}
	}
}

func TestFrameIndexAtTime_DuplicateTimesPicksLast(t *testing.T) {
	store := NewFrameStore([]Frame{frameAt(1, "a"), frameAt(1, "b")})
	if got := store.FrameIndexAtTime(1); got != 1 {
		t.Errorf("expected last frame sharing t, got %d", got)
	}
}

func TestFrameStore_Empty(t *testing.T) {
	store := NewFrameStore(nil)
	if !store.Empty() || store.Len() != 0 {
		t.Error("expected empty store")
	}
	if got := store.FrameIndexAtTime(3); got != 0 {
		t.Errorf("expected sentinel 0, got %d", got)
	}
	if _, ok := store.Frame(0); ok {
		t.Error("expected no frame at index 0")
	}
	if store.MaxTime() != 0 {
		t.Errorf("expected max time 0, got %v", store.MaxTime())
	}

	var nilStore *FrameStore
	if nilStore.Len() != 0 || len(nilStore.SortedFrames()) != 0 {
		t.Error("nil store should behave as empty")
	}
}
