package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/vinayprograms/loopscope/internal/replaystore"
)

// Run lists episodes from the configured store.
func (c *EpisodesCmd) Run(ctx context.Context, app *appContext) error {
	store, _, err := app.store()
	if err != nil {
		return err
	}
	eps, err := store.ListEpisodes(ctx)
	if err != nil {
		return fmt.Errorf("list episodes: %w", err)
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(eps)
	}

	if len(eps) == 0 {
		fmt.Println("No episodes. Seed one with: loopscope seed " + replaystore.DemoPresets()[0])
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tFRAMES\tDURATION\tCREATED")
	for _, ep := range eps {
		created := "-"
		if !ep.CreatedAt.IsZero() {
			created = ep.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2fs\t%s\n", ep.ID, ep.Title, ep.FrameCount, ep.Duration, created)
	}
	return w.Flush()
}
