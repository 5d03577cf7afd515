package tui

import (
	"time"

	"github.com/vinayprograms/loopscope/internal/episode"
	"github.com/vinayprograms/loopscope/internal/livefeed"
	"github.com/vinayprograms/loopscope/internal/replay"
)

// tickMsg drives one animation frame. Only the tick carrying the current
// sequence number is honored, so at most one tick loop runs.
type tickMsg struct {
	seq int
	at  time.Time
}

type loadedMsg struct {
	res    episode.Result
	follow bool
}

type listedMsg struct {
	episodes []replay.Summary
	err      error
}

type seededMsg struct {
	preset string
	seeded replay.Seeded
	err    error
}

type archivedMsg struct {
	id  string
	err error
}

type liveMsg struct {
	update livefeed.Update
}

type liveClosedMsg struct{}

type fileChangedMsg struct {
	path string
}
