// Package main is the entry point for the loopscope CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/vinayprograms/loopscope/internal/config"
	"github.com/vinayprograms/loopscope/internal/telemetry"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	config.LoadEnv()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("loopscope"),
		kong.Description("Replay and watch system-dynamics episodes in the terminal."),
		kong.UsageOnError(),
		kong.Vars(kongVars()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, kctx, &cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, kctx *kong.Context, g *Globals) error {
	app, err := g.app()
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Setup(ctx, app.cfg.Telemetry, version)
	if err != nil {
		app.logger.Warn("telemetry disabled", map[string]any{"error": err.Error()})
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(flushCtx)
	}()

	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(app)
}

// Run prints version information.
func (c *VersionCmd) Run() error {
	fmt.Printf("loopscope version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
