package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vinayprograms/loopscope/internal/livefeed"
	"github.com/vinayprograms/loopscope/internal/replay"
)

// Run appends one frame to a local episode, creating the episode when no id
// is given.
func (c *RecordCmd) Run(ctx context.Context, app *appContext) error {
	if c.Visual == "" && !c.Analyze {
		return fmt.Errorf("need --visual FILE or --analyze")
	}
	if c.Visual != "" && c.Analyze {
		return fmt.Errorf("--visual and --analyze are mutually exclusive")
	}

	store, err := app.localStore()
	if err != nil {
		return err
	}

	id := c.Episode
	var last *replay.Episode
	if id == "" {
		ep, err := store.CreateEpisode(ctx, c.Title)
		if err != nil {
			return fmt.Errorf("create episode: %w", err)
		}
		id, last = ep.ID, ep
	} else {
		ep, err := store.GetEpisode(ctx, id)
		if err != nil {
			return err
		}
		last = ep
	}

	t := c.At
	if t < 0 {
		t = 0
		if n := len(last.Frames); n > 0 {
			t = last.Frames[n-1].T + 1
		}
	}

	var analysis replay.Analysis
	if c.Analyze {
		a, err := app.backend().Analyze(ctx, c.Text, id)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		analysis = *a
	} else {
		st, err := readVisual(c.Visual)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Visual, err)
		}
		raw, err := json.Marshal(st)
		if err != nil {
			return err
		}
		analysis.Visual = raw
	}

	frame := analysis.Frame(t, c.Text)
	for k, v := range c.Signal {
		frame.SystemSignals[k] = v
	}
	frame.Meta.Tags = append(frame.Meta.Tags, c.Tag...)

	ep, warnings, err := store.AppendFrame(ctx, id, frame)
	if err != nil {
		return fmt.Errorf("append frame: %w", err)
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	fmt.Println(recordedLine(ep))

	if c.Publish {
		pub, err := livefeed.NewPublisher(app.cfg.Live.NATSURL, app.cfg.Live.Subject)
		if err != nil {
			return err
		}
		defer pub.Close()
		err = pub.Publish(replay.Analysis{
			EpisodeID:     ep.ID,
			SystemSignals: frame.SystemSignals,
			Visual:        frame.Visual,
			Warnings:      append(analysis.Warnings, warnings...),
		})
		if err != nil {
			return err
		}
		app.logger.Info("frame published", map[string]any{"episode": ep.ID, "subject": app.cfg.Live.Subject})
	}
	return nil
}

// recordedLine reports the last frame as stored. The store may have moved
// its time forward to keep frame times increasing.
func recordedLine(ep *replay.Episode) string {
	n := len(ep.Frames)
	if n == 0 {
		return "Recorded nothing in " + ep.ID
	}
	return fmt.Sprintf("Recorded frame %d at t=%.3f in %s", n, ep.Frames[n-1].T, ep.ID)
}
