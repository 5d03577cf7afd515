// Package replay holds the recorded episode model, the time-indexed frame
// store used for playback, and a styled timeline printer.
package replay

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/vinayprograms/loopscope/internal/visual"
)

// SchemaVersion is written into newly created episodes.
const SchemaVersion = "v1"

var (
	// ErrNotFound is returned when an episode does not exist.
	ErrNotFound = errors.New("episode not found")
	// ErrCorrupt is returned when a stored episode cannot be decoded.
	ErrCorrupt = errors.New("episode corrupted")
)

// Meta is optional annotation attached to a frame.
type Meta struct {
	Note string   `json:"note,omitempty"`
	Tags []string `json:"tags"`
}

// Frame is one recorded sample. Visual is kept raw and validated on demand.
type Frame struct {
	T             float64            `json:"t"`
	InputText     string             `json:"input_text,omitempty"`
	HumanState    json.RawMessage    `json:"human_state,omitempty"`
	SystemSignals map[string]float64 `json:"system_signals"`
	SystemState   json.RawMessage    `json:"system_state,omitempty"`
	Visual        json.RawMessage    `json:"visual"`
	Meta          Meta               `json:"meta"`
}

// VisualState validates the frame's visual payload.
func (f Frame) VisualState() (visual.State, error) {
	return visual.Parse(f.Visual)
}

// Episode is a recorded sequence of frames.
type Episode struct {
	ID        string    `json:"episode_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title,omitempty"`
	Duration  float64   `json:"duration"`
	Frames    []Frame   `json:"frames"`
	Version   string    `json:"version"`
}

// Summary is the listing view of an episode.
type Summary struct {
	ID         string    `json:"episode_id"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Duration   float64   `json:"duration"`
	FrameCount int       `json:"frame_count"`
}

// Seeded describes an episode created from a demo preset.
type Seeded struct {
	ID         string `json:"episode_id"`
	Title      string `json:"title"`
	FrameCount int    `json:"frame_count"`
}

// Summarize builds the listing view of e.
func (e *Episode) Summarize() Summary {
	return Summary{
		ID:         e.ID,
		Title:      e.Title,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		Duration:   e.Duration,
		FrameCount: len(e.Frames),
	}
}

// ReconcileDuration returns a duration that covers every frame. A stored
// duration that is missing, non-finite, non-positive or shorter than the last
// frame is replaced by the maximum frame time (0 with no frames).
func ReconcileDuration(stored float64, frames []Frame) float64 {
	maxT := 0.0
	for _, f := range frames {
		if t := finiteTime(f.T); t > maxT {
			maxT = t
		}
	}
	if math.IsNaN(stored) || math.IsInf(stored, 0) || stored <= 0 || stored < maxT {
		return maxT
	}
	return stored
}

// Normalize returns a copy of e with frames stable-sorted by time and the
// duration reconciled. Persisted order is never trusted.
func Normalize(e *Episode) *Episode {
	out := *e
	store := NewFrameStore(e.Frames)
	out.Frames = store.SortedFrames()
	out.Duration = ReconcileDuration(e.Duration, out.Frames)
	return &out
}

func finiteTime(t float64) float64 {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return 0
	}
	return t
}

// Analysis is the result of analyzing one input. It is what the backend
// returns from a full analysis and what the live feed publishes.
type Analysis struct {
	EpisodeID     string             `json:"episode_id,omitempty"`
	Signals       json.RawMessage    `json:"signals,omitempty"`
	HumanState    json.RawMessage    `json:"human_state,omitempty"`
	SystemSignals map[string]float64 `json:"system_signals,omitempty"`
	SystemState   json.RawMessage    `json:"system_state,omitempty"`
	Visual        json.RawMessage    `json:"visual"`
	Warnings      []string           `json:"warnings,omitempty"`
}

// Frame converts a into a frame recorded at t.
func (a Analysis) Frame(t float64, text string) Frame {
	signals := a.SystemSignals
	if signals == nil {
		signals = map[string]float64{}
	}
	return Frame{
		T:             t,
		InputText:     text,
		HumanState:    a.HumanState,
		SystemSignals: signals,
		SystemState:   a.SystemState,
		Visual:        a.Visual,
		Meta:          Meta{Tags: []string{}},
	}
}
