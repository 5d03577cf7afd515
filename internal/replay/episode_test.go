package replay

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReconcileDuration(t *testing.T) {
	frames := []Frame{frameAt(0, ""), frameAt(12.5, ""), frameAt(3, "")}

	tests := []struct {
		name   string
		stored float64
		frames []Frame
		want   float64
	}{
		{"missing", 0, frames, 12.5},
		{"shorter than last frame", 4, frames, 12.5},
		{"longer kept", 20, frames, 20},
		{"negative", -1, frames, 12.5},
		{"nan", math.NaN(), frames, 12.5},
		{"inf", math.Inf(1), frames, 12.5},
		{"no frames", 0, nil, 0},
		{"no frames keeps stored", 7, []Frame{}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReconcileDuration(tt.stored, tt.frames); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	ep := &Episode{ID: "e1", Frames: []Frame{frameAt(5, "b"), frameAt(1, "a")}}
	out := Normalize(ep)

	if out.Frames[0].Meta.Note != "a" || out.Frames[1].Meta.Note != "b" {
		t.Errorf("frames not sorted: %+v", out.Frames)
	}
	if out.Duration != 5 {
		t.Errorf("expected duration 5, got %v", out.Duration)
	}
	if ep.Frames[0].Meta.Note != "b" {
		t.Error("Normalize mutated its input")
	}
}

func TestSummarize(t *testing.T) {
	ep := &Episode{ID: "e1", Title: "demo", Duration: 3, Frames: []Frame{frameAt(0, ""), frameAt(3, "")}}
	s := ep.Summarize()
	if s.ID != "e1" || s.Title != "demo" || s.FrameCount != 2 || s.Duration != 3 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestDecodeEpisode(t *testing.T) {
	ep, err := DecodeEpisode([]byte(`{
	  "episode_id": "ep_1",
	  "title": "Demo",
	  "duration": 1,
	  "version": "v1",
	  "frames": [
	    {"t": 2, "input_text": "second", "system_signals": {"load": 0.4}, "visual": {"nodes": [], "loops": [], "levers": []}, "meta": {"tags": []}},
	    {"t": 0, "input_text": "first", "system_signals": {}, "visual": {"nodes": [], "loops": [], "levers": []}, "meta": {"tags": ["seed"]}}
	  ]
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ep.Frames[0].InputText != "first" {
		t.Errorf("expected frames sorted by t, got %q first", ep.Frames[0].InputText)
	}
	if ep.Duration != 2 {
		t.Errorf("expected duration reconciled to 2, got %v", ep.Duration)
	}
	if _, err := ep.Frames[1].VisualState(); err != nil {
		t.Errorf("expected valid visual: %v", err)
	}
}

func TestDecodeEpisode_Corrupt(t *testing.T) {
	_, err := DecodeEpisode([]byte(`{"episode_id": `))
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestDecodeEpisode_NoFrames(t *testing.T) {
	ep, err := DecodeEpisode([]byte(`{"episode_id": "e"}`))
	if err != nil {
		t.Fatal(err)
	}
	if ep.Frames == nil || len(ep.Frames) != 0 || ep.Duration != 0 {
		t.Errorf("expected empty frames and zero duration, got %+v", ep)
	}
}

func TestLoadFile_JSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ep.jsonl")
	data := strings.Join([]string{
		`{"record":"header","episode_id":"ep_2","title":"Lines"}`,
		``,
		`{"record":"frame","frame":{"t":1,"input_text":"b","system_signals":{},"visual":{"nodes":[],"loops":[],"levers":[]},"meta":{"tags":[]}}}`,
		`{"record":"frame","frame":{"t":0.5,"input_text":"a","system_signals":{},"visual":{"nodes":[],"loops":[],"levers":[]},"meta":{"tags":[]}}}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	format, err := DetectFormat(path)
	if err != nil || format != "jsonl" {
		t.Fatalf("expected jsonl, got %q (%v)", format, err)
	}

	ep, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ep.ID != "ep_2" || ep.Title != "Lines" {
		t.Errorf("header not applied: %+v", ep)
	}
	if len(ep.Frames) != 2 || ep.Frames[0].InputText != "a" {
		t.Errorf("unexpected frames: %+v", ep.Frames)
	}
	if ep.Duration != 1 {
		t.Errorf("expected duration 1, got %v", ep.Duration)
	}
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ep.json")
	if err := os.WriteFile(path, []byte(`{"episode_id":"ep_3","frames":[]}`), 0644); err != nil {
		t.Fatal(err)
	}
	ep, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ep.ID != "ep_3" {
		t.Errorf("expected ep_3, got %q", ep.ID)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
