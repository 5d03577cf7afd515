package telemetry

import (
	"context"
	"testing"

	"github.com/vinayprograms/loopscope/internal/config"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Endpoint: "localhost:4318"}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown failed: %v", err)
	}
}

func TestSetup_Enabled(t *testing.T) {
	cfg := config.TelemetryConfig{Enabled: true, Endpoint: "127.0.0.1:1", Insecure: true}
	shutdown, err := Setup(context.Background(), cfg, "test")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Nothing was exported, so a cancelled flush has nothing to wait on.
	_ = shutdown(ctx)
}
