package main

import (
	"context"
	"fmt"
)

// Run seeds a demo episode into the configured store.
func (c *SeedCmd) Run(ctx context.Context, app *appContext) error {
	store, _, err := app.store()
	if err != nil {
		return err
	}
	seeded, err := store.SeedDemo(ctx, c.Preset)
	if err != nil {
		return fmt.Errorf("seed %s: %w", c.Preset, err)
	}
	fmt.Printf("Seeded %q: %s (%d frames)\n", seeded.Title, seeded.ID, seeded.FrameCount)
	return nil
}
