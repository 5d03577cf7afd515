// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Globals

	View     ViewCmd     `cmd:"" default:"withargs" help:"Open the interactive viewer"`
	Episodes EpisodesCmd `cmd:"" help:"List recorded episodes"`
	Dump     DumpCmd     `cmd:"" help:"Print an episode timeline"`
	Seed     SeedCmd     `cmd:"" help:"Create an episode from a demo preset"`
	Validate ValidateCmd `cmd:"" help:"Check a visual state file against the schema"`
	Record   RecordCmd   `cmd:"" help:"Append a frame to a local episode"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// Globals are flags shared by every command.
type Globals struct {
	Config   string `short:"c" help:"Config file path (default: ./loopscope.toml)" type:"path"`
	Backend  string `help:"Backend URL (overrides config)"`
	Local    bool   `help:"Use the local episode directory instead of the backend"`
	LogLevel string `help:"Log level (debug, info, warn, error)" placeholder:"LEVEL"`
}

// ViewCmd opens the interactive viewer.
type ViewCmd struct {
	File      string `arg:"" optional:"" help:"Episode file to open instead of a stored episode" type:"path"`
	Episode   string `short:"e" help:"Episode id to open"`
	Follow    bool   `short:"f" help:"Reload the episode whenever its file changes (local episodes and files)"`
	FromStart bool   `help:"Open episodes at the first frame and play"`
	Live      bool   `help:"Subscribe to the live feed (overrides config)"`
	Mode      string `enum:"live,replay," default:"" help:"Initial mode (live, replay)"`
}

// EpisodesCmd lists episodes.
type EpisodesCmd struct {
	JSON bool `help:"Print as JSON"`
}

// DumpCmd prints an episode timeline.
type DumpCmd struct {
	Targets []string `arg:"" help:"Episode ids or episode files"`
	Verbose int      `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
	NoPager bool     `help:"Disable pager for output"`
	Stats   bool     `help:"Print only per-signal statistics"`
	YAML    bool     `name:"yaml" help:"Print the raw episode as YAML"`
	Follow  bool     `short:"f" help:"Re-render a single episode file whenever it changes"`
}

// SeedCmd creates a demo episode.
type SeedCmd struct {
	Preset string `arg:"" optional:"" default:"growth" enum:"growth,fixes,escalation" help:"Demo preset (growth, fixes, escalation)"`
}

// ValidateCmd checks a VisualState document.
type ValidateCmd struct {
	File string `arg:"" help:"Visual state file (.json, .yaml or .yml)" type:"existingfile"`
}

// RecordCmd appends a frame to a local episode.
type RecordCmd struct {
	Text    string             `arg:"" help:"Input text for the frame"`
	Episode string             `short:"e" help:"Episode id (a new episode is created when empty)"`
	Title   string             `help:"Title for a new episode"`
	Visual  string             `help:"Visual state file for the frame" type:"existingfile"`
	Analyze bool               `help:"Ask the backend to analyze the text for the visual"`
	At      float64            `default:"-1" help:"Frame time in seconds (default: after the last frame)"`
	Signal  map[string]float64 `short:"s" help:"System signal key=value (repeatable)"`
	Tag     []string           `help:"Frame tag (repeatable)"`
	Publish bool               `help:"Publish the frame on the live feed"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
