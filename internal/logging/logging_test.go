package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	logger.Info("info message")
	line := buf.String()
	if !strings.HasPrefix(line, "INFO ") {
		t.Errorf("expected INFO prefix, got %q", line)
	}
	if !strings.Contains(line, "info message") {
		t.Errorf("expected message in line, got %q", line)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	base := New()
	base.SetOutput(&buf)
	logger := base.WithComponent("playback")

	logger.Info("test message")

	if !strings.Contains(buf.String(), "[playback] test message") {
		t.Errorf("expected component tag, got %q", buf.String())
	}
}

func TestLogger_FieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Warn("fields", map[string]any{"zeta": 1, "alpha": "x", "mid": true})

	line := strings.TrimSpace(buf.String())
	if !strings.HasSuffix(line, "fields alpha=x mid=true zeta=1") {
		t.Errorf("unexpected field order: %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLogger_DomainHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.EpisodeLoaded("ep_1", 3, 5, 20*time.Millisecond)
	logger.EpisodeFailed("ep_2", errors.New("boom"))
	logger.SchemaRejected("replay", errors.New("bad shape"))
	logger.PlaybackTransition("paused", "playing", 1.5)
	logger.BackendRetry("get_episode", 1, errors.New("refused"))
	logger.FrameRecovered("scene", "nil map")

	out := buf.String()
	for _, want := range []string{
		"episode_loaded", "frames=3",
		"episode_failed", "error=boom",
		"schema_rejected", "source=replay",
		"playback_transition", "to=playing",
		"backend_retry", "attempt=1",
		"frame_recovered", "panic=nil map",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nothing")

	var nilLogger *Logger
	nilLogger.Info("no panic")
}
