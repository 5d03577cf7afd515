// Package playback implements the replay transport: a clock that maps wall
// time onto episode time and keeps the current frame index in step with it.
package playback

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/vinayprograms/loopscope/internal/replay"
)

// State is the transport state.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Speeds are the supported playback rate multipliers, slowest first.
var Speeds = []float64{0.5, 1, 2, 4}

// ErrUnsupportedSpeed is returned by SetSpeed for rates outside Speeds.
var ErrUnsupportedSpeed = errors.New("unsupported playback speed")

// Clock advances currentTime while playing. It is not safe for concurrent
// use; the owner drives it from a single goroutine.
type Clock struct {
	store    *replay.FrameStore
	duration float64
	playing  bool
	speed    float64
	current  float64
	index    int

	// Zero until the first tick after play establishes a baseline.
	lastTick time.Time
}

// New returns an idle clock at speed 1.
func New() *Clock {
	return &Clock{
		store: replay.NewFrameStore(nil),
		speed: 1,
	}
}

// Load installs a frame store. When the frame count or duration differs
// from the current episode the clock rewinds to t=0 and pauses; otherwise the
// position is kept and the index re-derived.
func (c *Clock) Load(store *replay.FrameStore, duration float64) {
	if store == nil {
		store = replay.NewFrameStore(nil)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = 0
	}

	changed := store.Len() != c.store.Len() || duration != c.duration
	c.store = store
	c.duration = duration

	if changed {
		c.current = 0
		c.index = 0
		c.pause()
		return
	}
	c.current = min(c.current, duration)
	c.index = c.store.FrameIndexAtTime(c.current)
}

// State reports the transport state. A clock with no frames and not playing
// is idle.
func (c *Clock) State() State {
	switch {
	case c.playing:
		return StatePlaying
	case c.store.Empty():
		return StateIdle
	default:
		return StatePaused
	}
}

// Playing reports whether the clock is advancing.
func (c *Clock) Playing() bool { return c.playing }

// Speed returns the rate multiplier.
func (c *Clock) Speed() float64 { return c.speed }

// CurrentTime returns the playback position in seconds, within [0, Duration].
func (c *Clock) CurrentTime() float64 { return c.current }

// CurrentIndex returns the index of the frame shown at CurrentTime.
func (c *Clock) CurrentIndex() int { return c.index }

// Duration returns the episode duration in seconds.
func (c *Clock) Duration() float64 { return c.duration }

// Store returns the installed frame store.
func (c *Clock) Store() *replay.FrameStore { return c.store }

// Disabled reports whether the transport has nothing to play.
func (c *Clock) Disabled() bool { return c.store.Empty() }

// CurrentFrame returns the frame at CurrentIndex, if there is one.
func (c *Clock) CurrentFrame() (replay.Frame, bool) {
	return c.store.Frame(c.index)
}

// Play starts advancing. It is a no-op when already playing or when there
// is nothing to play. Playing from the end rewinds to the start.
func (c *Clock) Play() bool {
	if c.playing || c.duration <= 0 {
		return false
	}
	if c.current >= c.duration {
		c.current = 0
		c.index = c.store.FrameIndexAtTime(0)
	}
	c.playing = true
	c.lastTick = time.Time{}
	return true
}

// Pause stops advancing. Idempotent.
func (c *Clock) Pause() bool {
	if !c.playing {
		return false
	}
	c.pause()
	return true
}

func (c *Clock) pause() {
	c.playing = false
	c.lastTick = time.Time{}
}

// Toggle switches between playing and paused.
func (c *Clock) Toggle() bool {
	if c.playing {
		return c.Pause()
	}
	return c.Play()
}

// Scrub jumps to t, clamped to [0, Duration]. The play state is unchanged.
func (c *Clock) Scrub(t float64) {
	if math.IsNaN(t) {
		t = 0
	}
	c.current = max(0, min(t, c.duration))
	c.index = c.store.FrameIndexAtTime(c.current)
}

// SeekStart scrubs to 0.
func (c *Clock) SeekStart() { c.Scrub(0) }

// SeekEnd scrubs to Duration.
func (c *Clock) SeekEnd() { c.Scrub(c.duration) }

// Step moves the frame index by n, clamped to the frame range, and sets the
// time to that frame's t. The play state is unchanged.
func (c *Clock) Step(n int) {
	if c.store.Empty() {
		c.current = 0
		c.index = 0
		return
	}
	c.index = max(0, min(c.index+n, c.store.Len()-1))
	f, _ := c.store.Frame(c.index)
	t := f.T
	if math.IsNaN(t) || math.IsInf(t, 0) {
		t = 0
	}
	c.current = max(0, min(t, c.duration))
}

// SetSpeed changes the rate used by the next advancement.
func (c *Clock) SetSpeed(s float64) error {
	if !slices.Contains(Speeds, s) {
		return fmt.Errorf("%w: %v", ErrUnsupportedSpeed, s)
	}
	c.speed = s
	return nil
}

// CycleSpeed moves to the next rate in Speeds, wrapping around.
func (c *Clock) CycleSpeed() float64 {
	i := slices.Index(Speeds, c.speed)
	c.speed = Speeds[(i+1)%len(Speeds)]
	return c.speed
}

// Tick advances by the wall time elapsed since the previous tick. The first
// tick after Play only records the baseline. It reports whether the
// position moved.
func (c *Clock) Tick(now time.Time) bool {
	if !c.playing {
		return false
	}
	if c.lastTick.IsZero() {
		c.lastTick = now
		return false
	}
	delta := now.Sub(c.lastTick).Seconds()
	c.lastTick = now
	if delta <= 0 {
		return false
	}
	return c.Advance(delta)
}

// Advance moves the position forward by delta wall seconds at the current
// speed. Reaching the end pauses the clock.
func (c *Clock) Advance(delta float64) bool {
	if !c.playing || math.IsNaN(delta) || delta <= 0 {
		return false
	}
	next := c.current + delta*c.speed
	if math.IsNaN(next) || next >= c.duration {
		next = c.duration
	}
	c.current = max(0, next)
	c.index = c.store.FrameIndexAtTime(c.current)
	if c.current >= c.duration {
		c.pause()
	}
	return true
}
