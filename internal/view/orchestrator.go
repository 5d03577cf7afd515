// Package view decides, on every render, which visual state is shown: the
// current replay frame, the live feed, or the last state that validated.
package view

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/vinayprograms/loopscope/internal/logging"
	"github.com/vinayprograms/loopscope/internal/replay"
	"github.com/vinayprograms/loopscope/internal/visual"
)

// Mode is the data source the user selected.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeReplay Mode = "replay"
)

// Source says where the shown state came from.
type Source string

const (
	SourceFrame      Source = "frame"
	SourceLastReplay Source = "last-replay"
	SourceLive       Source = "live"
	SourceLastLive   Source = "last-live"
	SourceEmpty      Source = "empty"
)

// Intent is the transport action taken the first time an episode id is seen.
type Intent int

const (
	// IntentLatest seeks to the end and pauses.
	IntentLatest Intent = iota
	// IntentFromStart seeks to the start and plays.
	IntentFromStart
)

func (i Intent) String() string {
	if i == IntentFromStart {
		return "from-start"
	}
	return "latest"
}

// Transport is the part of the playback clock the orchestrator drives.
type Transport interface {
	SeekStart()
	SeekEnd()
	Play() bool
	Pause() bool
}

// Input is everything Resolve looks at for one render.
type Input struct {
	Mode      Mode
	EpisodeID string
	Loading   bool
	// EpisodeErr is the session's load error for EpisodeID.
	EpisodeErr error
	// Frame is the current replay frame, nil when there is none.
	Frame *replay.Frame
	// FrameIndex is used in diagnostics only.
	FrameIndex int
	// Live is the latest live payload, nil before the first one.
	Live []byte
	// Transport receives the one-time episode switch action. Optional.
	Transport Transport
}

// Output is the state to render plus advisory information.
type Output struct {
	State   visual.State
	FocusID string
	Warning string
	// Mode is the mode actually shown. It differs from Input.Mode when
	// replay had nothing to show and the view fell back to live.
	Mode     Mode
	Reverted bool
	Source   Source
	// Action names the transport action fired this render, if any.
	Action string
}

type parsed struct {
	valid bool
	key   uint64
	state visual.State
	err   error
}

// Orchestrator holds last-known-good states and focus ownership between
// renders. It is not safe for concurrent use.
type Orchestrator struct {
	logger *logging.Logger

	lastReplay *visual.State
	lastLive   *visual.State
	replayMemo parsed
	liveMemo   parsed

	userFocus string

	intent   Intent
	observed string
	// pending is set on every episode id change and cleared once the
	// intent action has run against a successful load.
	pending bool
}

// New creates an Orchestrator that opens new episodes at their latest frame.
func New(logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{logger: logger, intent: IntentLatest}
}

// SetIntent chooses the action for the next episode switch.
func (o *Orchestrator) SetIntent(i Intent) { o.intent = i }

// Intent returns the action for the next episode switch.
func (o *Orchestrator) Intent() Intent { return o.intent }

// SetUserFocus pins focus to id, overriding focus carried in the data. An
// empty id clears the user focus.
func (o *Orchestrator) SetUserFocus(id string) { o.userFocus = id }

// ClearUserFocus hands focus back to the data.
func (o *Orchestrator) ClearUserFocus() { o.userFocus = "" }

// UserFocus returns the user-selected focus id, if any.
func (o *Orchestrator) UserFocus() string { return o.userFocus }

// Resolve picks the state to render.
func (o *Orchestrator) Resolve(in Input) Output {
	var out Output
	if in.Mode == ModeReplay {
		out = o.resolveReplay(in)
	} else {
		out = o.resolveLive(in)
	}

	out.FocusID = out.State.Focus
	if o.userFocus != "" {
		out.FocusID = o.userFocus
	}
	return out
}

// observe resets per-episode state whenever the requested id changes,
// including requests that are still loading or that failed.
func (o *Orchestrator) observe(in Input) {
	if in.EpisodeID == o.observed {
		return
	}
	o.observed = in.EpisodeID
	o.lastReplay = nil
	o.replayMemo = parsed{}
	o.userFocus = ""
	o.pending = in.EpisodeID != ""
}

// fire runs the intent action once per id transition, after the episode
// loaded.
func (o *Orchestrator) fire(in Input) string {
	if !o.pending || in.Loading || in.EpisodeErr != nil || in.Transport == nil {
		return ""
	}
	o.pending = false
	switch o.intent {
	case IntentFromStart:
		in.Transport.SeekStart()
		in.Transport.Play()
	default:
		in.Transport.SeekEnd()
		in.Transport.Pause()
	}
	return o.intent.String()
}

func (o *Orchestrator) resolveReplay(in Input) Output {
	out := Output{Mode: ModeReplay}

	o.observe(in)
	// The action waits for the episode so it runs against the loaded frames.
	out.Action = o.fire(in)

	if in.EpisodeErr != nil {
		return o.revert(in, fmt.Sprintf("episode %s unavailable: %v", in.EpisodeID, in.EpisodeErr))
	}

	if in.Frame != nil {
		st, err := o.parse(&o.replayMemo, in.Frame.Visual)
		if err == nil {
			o.lastReplay = &st
			out.State = st
			out.Source = SourceFrame
			return out
		}
		o.logger.SchemaRejected("replay", err)
		out.Warning = fmt.Sprintf("frame %d has an invalid visual: %v", in.FrameIndex, err)
	}

	if o.lastReplay != nil {
		out.State = *o.lastReplay
		out.Source = SourceLastReplay
		return out
	}

	if in.Loading {
		// Nothing to show yet; keep replay mode while the load is in flight.
		live := o.resolveLive(in)
		live.Mode = ModeReplay
		live.Warning = "loading episode " + in.EpisodeID
		return live
	}

	reason := out.Warning
	if reason == "" {
		reason = "episode has no frames"
	}
	return o.revert(in, reason)
}

// revert shows live data because replay has nothing usable.
func (o *Orchestrator) revert(in Input, reason string) Output {
	out := o.resolveLive(in)
	out.Reverted = true
	out.Warning = reason + "; showing live"
	return out
}

func (o *Orchestrator) resolveLive(in Input) Output {
	out := Output{Mode: ModeLive}

	if in.Live != nil {
		key := xxhash.Sum64(in.Live)
		fresh := !o.liveMemo.valid || o.liveMemo.key != key
		st, err := o.parse(&o.liveMemo, in.Live)
		if err == nil {
			if fresh && o.lastLive != nil && in.Mode == ModeLive {
				// A new live frame resets user focus.
				o.userFocus = ""
			}
			o.lastLive = &st
			out.State = st
			out.Source = SourceLive
			return out
		}
		if fresh {
			o.logger.SchemaRejected("live", err)
		}
		out.Warning = fmt.Sprintf("live state invalid: %v", err)
	}

	if o.lastLive != nil {
		out.State = *o.lastLive
		out.Source = SourceLastLive
		return out
	}

	out.State = visual.Empty()
	out.Source = SourceEmpty
	if out.Warning == "" {
		out.Warning = "no live state yet"
	}
	return out
}

// parse validates raw, reusing the previous result when the bytes are
// unchanged.
func (o *Orchestrator) parse(memo *parsed, raw []byte) (visual.State, error) {
	key := xxhash.Sum64(raw)
	if memo.valid && memo.key == key {
		return memo.state, memo.err
	}
	st, err := visual.Parse(raw)
	*memo = parsed{valid: true, key: key, state: st, err: err}
	return st, err
}
