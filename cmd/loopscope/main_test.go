package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"

	"github.com/vinayprograms/loopscope/internal/config"
	"github.com/vinayprograms/loopscope/internal/logging"
	"github.com/vinayprograms/loopscope/internal/replay"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars(kongVars()))
	if err != nil {
		t.Fatal(err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		t.Fatal(err)
	}
	return &cli, kctx
}

func TestViewCmd_Default(t *testing.T) {
	cli, kctx := parse(t)
	if !strings.HasPrefix(kctx.Command(), "view") {
		t.Errorf("expected default command view, got %q", kctx.Command())
	}
	if cli.View.Mode != "" || cli.View.Follow {
		t.Errorf("unexpected defaults: %+v", cli.View)
	}
}

func TestViewCmd_Flags(t *testing.T) {
	cli, _ := parse(t, "view", "-e", "ep_1", "--from-start", "--mode", "replay", "--live")
	if cli.View.Episode != "ep_1" {
		t.Errorf("expected episode ep_1, got %q", cli.View.Episode)
	}
	if !cli.View.FromStart || !cli.View.Live {
		t.Error("expected --from-start and --live")
	}
	if cli.View.Mode != "replay" {
		t.Errorf("expected mode replay, got %q", cli.View.Mode)
	}
}

func TestViewCmd_RejectsUnknownMode(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars(kongVars()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse([]string{"view", "--mode", "paused"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestGlobals(t *testing.T) {
	cli, _ := parse(t, "--local", "--backend", "http://example:9000", "--log-level", "debug", "episodes", "--json")
	if !cli.Local || cli.Backend != "http://example:9000" || cli.LogLevel != "debug" {
		t.Errorf("unexpected globals: %+v", cli.Globals)
	}
	if !cli.Episodes.JSON {
		t.Error("expected --json")
	}
}

func TestDumpCmd_Verbose(t *testing.T) {
	cli, _ := parse(t, "dump", "-vv", "--no-pager", "a.json", "ep_2")
	if cli.Dump.Verbose != 2 {
		t.Errorf("expected verbose=2, got %d", cli.Dump.Verbose)
	}
	if !cli.Dump.NoPager {
		t.Error("expected --no-pager")
	}
	if diff := cmp.Diff([]string{"a.json", "ep_2"}, cli.Dump.Targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestSeedCmd_Preset(t *testing.T) {
	cli, _ := parse(t, "seed")
	if cli.Seed.Preset != "growth" {
		t.Errorf("expected default preset growth, got %q", cli.Seed.Preset)
	}
	cli, _ = parse(t, "seed", "escalation")
	if cli.Seed.Preset != "escalation" {
		t.Errorf("expected escalation, got %q", cli.Seed.Preset)
	}

	var bad CLI
	parser, err := kong.New(&bad, kong.Vars(kongVars()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse([]string{"seed", "collapse"}); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestRecordCmd_Flags(t *testing.T) {
	vis := writeVisual(t)
	cli, _ := parse(t, "record", "hiring froze",
		"--visual", vis,
		"-s", "load=0.5", "-s", "chaos=0.25",
		"--tag", "a", "--tag", "b",
		"--at", "4.5")
	if cli.Record.Text != "hiring froze" {
		t.Errorf("unexpected text %q", cli.Record.Text)
	}
	if diff := cmp.Diff(map[string]float64{"load": 0.5, "chaos": 0.25}, cli.Record.Signal); diff != "" {
		t.Errorf("signals mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, cli.Record.Tag); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if cli.Record.At != 4.5 {
		t.Errorf("expected at=4.5, got %v", cli.Record.At)
	}
}

func TestRecordCmd_DefaultAt(t *testing.T) {
	cli, _ := parse(t, "record", "x", "--analyze")
	if cli.Record.At >= 0 {
		t.Errorf("expected negative default, got %v", cli.Record.At)
	}
}

func TestValidateCmd(t *testing.T) {
	vis := writeVisual(t)
	cli, _ := parse(t, "validate", vis)
	if err := cli.Validate.Run(); err != nil {
		t.Fatalf("expected valid file: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("nodes: 3\nloops: []\nlevers: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cli.Validate.File = bad
	if err := cli.Validate.Run(); err == nil {
		t.Error("expected validation failure")
	}
}

func TestRecordCmd_AppendsToLocalEpisode(t *testing.T) {
	app := testApp(t)
	vis := writeVisual(t)

	first := &RecordCmd{Text: "one", Title: "Recorded", Visual: vis, At: -1, Tag: []string{"cli"}}
	if err := first.Run(context.Background(), app); err != nil {
		t.Fatal(err)
	}
	store, err := app.localStore()
	if err != nil {
		t.Fatal(err)
	}
	eps, err := store.ListEpisodes(context.Background())
	if err != nil || len(eps) != 1 {
		t.Fatalf("expected one episode, got %v (%v)", eps, err)
	}
	id := eps[0].ID

	second := &RecordCmd{Text: "two", Episode: id, Visual: vis, At: -1, Signal: map[string]float64{"load": 0.7}}
	if err := second.Run(context.Background(), app); err != nil {
		t.Fatal(err)
	}

	ep, err := store.GetEpisode(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(ep.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(ep.Frames))
	}
	// The first frame of an empty episode is bumped off zero by the store,
	// and the next default time follows the stored one.
	if math.Abs(ep.Frames[0].T-0.001) > 1e-9 || math.Abs(ep.Frames[1].T-1.001) > 1e-9 {
		t.Errorf("expected automatic times 0.001 and 1.001, got %v and %v", ep.Frames[0].T, ep.Frames[1].T)
	}
	if got := recordedLine(ep); got != "Recorded frame 2 at t=1.001 in "+id {
		t.Errorf("unexpected report %q", got)
	}
	if diff := cmp.Diff([]string{"cli"}, ep.Frames[0].Meta.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if ep.Frames[1].SystemSignals["load"] != 0.7 {
		t.Errorf("expected load signal, got %v", ep.Frames[1].SystemSignals)
	}
	if ep.Title != "Recorded" {
		t.Errorf("expected title Recorded, got %q", ep.Title)
	}
}

func TestRecordCmd_NeedsVisualSource(t *testing.T) {
	cmd := &RecordCmd{Text: "x", At: -1}
	if err := cmd.Run(context.Background(), testApp(t)); err == nil {
		t.Error("expected error without --visual or --analyze")
	}
}

func TestDumpCmd_LoadsFilesAndIDs(t *testing.T) {
	app := testApp(t)
	store, err := app.localStore()
	if err != nil {
		t.Fatal(err)
	}
	seeded, err := store.SeedDemo(context.Background(), "growth")
	if err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(app.cfg.EpisodesDir(), "current", seeded.ID+".json")

	cmd := &DumpCmd{Targets: []string{file, seeded.ID}}
	eps, err := cmd.load(context.Background(), app)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 2 || eps[0].ID != seeded.ID || eps[1].ID != seeded.ID {
		t.Fatalf("unexpected episodes: %v", eps)
	}

	out, err := cmd.render(eps[:1], cmd.Targets)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, seeded.ID) {
		t.Errorf("expected rendered timeline to mention %s", seeded.ID)
	}
}

func TestWriteYAML(t *testing.T) {
	ep := replay.Normalize(&replay.Episode{
		ID: "ep_yaml",
		Frames: []replay.Frame{{
			T:             1,
			SystemSignals: map[string]float64{"load": 0.5},
			Visual:        []byte(`{"nodes":[],"loops":[],"levers":[]}`),
		}},
	})
	var buf strings.Builder
	if err := writeYAML(&buf, []*replay.Episode{ep}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"episode_id: ep_yaml", "load: 0.5", "nodes: []"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func testApp(t *testing.T) *appContext {
	t.Helper()
	cfg := config.Default()
	cfg.Backend.Local = true
	cfg.Storage.EpisodesDir = filepath.Join(t.TempDir(), "episodes")
	logger := logging.New()
	logger.SetOutput(&strings.Builder{})
	return &appContext{cfg: cfg, logger: logger}
}

func writeVisual(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	data := `{"focus":"a","nodes":[{"id":"a","shape":"sphere","pos":[0,0,0],"color":"#f97316","intensity":0.8,"opacity":1}],"loops":[],"levers":[]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
