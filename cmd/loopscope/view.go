package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vinayprograms/loopscope/internal/livefeed"
	"github.com/vinayprograms/loopscope/internal/prefs"
	"github.com/vinayprograms/loopscope/internal/tui"
	"github.com/vinayprograms/loopscope/internal/view"
)

// Run opens the interactive viewer.
func (c *ViewCmd) Run(ctx context.Context, app *appContext) error {
	if !isTerminal(os.Stdout) {
		return fmt.Errorf("view needs a terminal; use dump for non-interactive output")
	}

	// The terminal belongs to the UI from here on.
	closeLog, err := app.logToFile()
	if err != nil {
		return err
	}
	defer closeLog()
	logger := app.logger

	opts := tui.Options{
		EpisodeID: c.Episode,
		Mode:      view.Mode(c.Mode),
		Config:    app.cfg,
		Logger:    logger,
	}
	if c.FromStart {
		opts.Intent = view.IntentFromStart
	}

	followPath := ""
	switch {
	case c.File != "":
		fs := tui.NewFileStore(c.File)
		opts.Store = fs
		opts.EpisodeID = fs.ID()
		followPath = c.File
	default:
		store, local, err := app.store()
		if err != nil {
			return err
		}
		opts.Store = store
		if local != nil {
			opts.Archiver = local
			if c.Episode != "" {
				followPath = filepath.Join(app.cfg.EpisodesDir(), "current", c.Episode+".json")
			}
		}
	}

	if c.Follow {
		if followPath == "" {
			return fmt.Errorf("--follow needs an episode file or a local episode (--local -e ID)")
		}
		f, err := tui.Follow(followPath)
		if err != nil {
			return err
		}
		defer f.Close()
		opts.Follow = f
	}

	if c.Live || app.cfg.Live.Enabled {
		sub, err := livefeed.Subscribe(app.cfg.Live.NATSURL, app.cfg.Live.Subject, logger.WithComponent("live"))
		if err != nil {
			// The viewer still works on recorded episodes.
			logger.Warn("live feed unavailable", map[string]any{"url": app.cfg.Live.NATSURL, "error": err.Error()})
		} else {
			defer sub.Close()
			opts.Live = sub.Updates()
		}
	}

	ps, err := prefs.Open(app.cfg.PrefsPath())
	if err != nil {
		logger.Warn("preferences unavailable", map[string]any{"error": err.Error()})
	} else {
		defer ps.Close()
		opts.Prefs = ps
	}

	logger.Info("viewer started", map[string]any{
		"episode": opts.EpisodeID,
		"follow":  followPath,
		"live":    opts.Live != nil,
	})
	return tui.Run(ctx, opts)
}
