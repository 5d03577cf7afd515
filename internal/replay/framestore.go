package replay

import (
	"slices"
	"sort"
)

// FrameStore is an immutable, time-sorted view over an episode's frames.
// Build a new store whenever the source frames change.
type FrameStore struct {
	frames []Frame
}

// NewFrameStore copies frames and stable-sorts them by t, so frames sharing
// a timestamp keep their input order.
func NewFrameStore(frames []Frame) *FrameStore {
	sorted := slices.Clone(frames)
	sort.SliceStable(sorted, func(i, j int) bool {
		return finiteTime(sorted[i].T) < finiteTime(sorted[j].T)
	})
	return &FrameStore{frames: sorted}
}

// SortedFrames returns a copy of the frames in ascending time order.
func (s *FrameStore) SortedFrames() []Frame {
	if s == nil {
		return []Frame{}
	}
	return slices.Clone(s.frames)
}

// Len returns the number of frames.
func (s *FrameStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

// Empty reports whether the store has no frames. Index 0 of an empty store
// is a sentinel with no data behind it.
func (s *FrameStore) Empty() bool {
	return s.Len() == 0
}

// Frame returns frame i.
func (s *FrameStore) Frame(i int) (Frame, bool) {
	if i < 0 || i >= s.Len() {
		return Frame{}, false
	}
	return s.frames[i], true
}

// MaxTime returns the timestamp of the last frame, or 0.
func (s *FrameStore) MaxTime() float64 {
	if s.Empty() {
		return 0
	}
	return finiteTime(s.frames[len(s.frames)-1].T)
}

// FrameIndexAtTime returns the index of the last frame whose t <= query.
// It never returns a frame from the future; when no frame qualifies, or the
// store is empty, it returns 0.
func (s *FrameStore) FrameIndexAtTime(t float64) int {
	n := s.Len()
	if n == 0 {
		return 0
	}
	// First index whose time is strictly after t.
	after := sort.Search(n, func(i int) bool {
		return finiteTime(s.frames[i].T) > t
	})
	if after == 0 {
		return 0
	}
	return after - 1
}
