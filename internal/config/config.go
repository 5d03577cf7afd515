// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultFile is the config file looked up in the current directory.
const DefaultFile = "loopscope.toml"

// EnvBackendURL overrides Backend.URL when set.
const EnvBackendURL = "LOOPSCOPE_BACKEND_URL"

// Config represents the loopscope configuration.
type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Storage   StorageConfig   `toml:"storage"`
	Playback  PlaybackConfig  `toml:"playback"`
	Render    RenderConfig    `toml:"render"`
	Live      LiveConfig      `toml:"live"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// BackendConfig points at the analysis and replay service.
type BackendConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Local          bool   `toml:"local"` // Read episodes from storage.episodes_dir instead of the service
}

// StorageConfig contains local persistence paths.
type StorageConfig struct {
	EpisodesDir string `toml:"episodes_dir"`
	PrefsPath   string `toml:"prefs_path"`
}

// PlaybackConfig contains playback defaults.
type PlaybackConfig struct {
	DefaultSpeed float64 `toml:"default_speed"`
	FPS          int     `toml:"fps"`
}

// RenderConfig contains scene renderer settings.
type RenderConfig struct {
	Lambda       float64 `toml:"lambda"`        // Smoothing rate, higher converges faster
	MaxParticles int     `toml:"max_particles"` // Upper bound on field particles
	Width        int     `toml:"width"`         // Canvas columns, 0 = terminal width
	Height       int     `toml:"height"`        // Canvas rows, 0 = terminal height
}

// LiveConfig contains the live feed connection.
type LiveConfig struct {
	Enabled bool   `toml:"enabled"`
	NATSURL string `toml:"nats_url"`
	Subject string `toml:"subject"`
}

// LoggingConfig contains log settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // The interactive view always logs here
}

// TelemetryConfig contains tracing settings.
type TelemetryConfig struct {
	Enabled  bool              `toml:"enabled"`
	Endpoint string            `toml:"endpoint"` // OTLP/HTTP endpoint (e.g., localhost:4318)
	Insecure bool              `toml:"insecure"` // Disable TLS
	Headers  map[string]string `toml:"headers"`  // Auth headers sent with every export
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:            "http://localhost:8000",
			TimeoutSeconds: 12,
		},
		Storage: StorageConfig{
			EpisodesDir: "~/.local/loopscope/episodes",
			PrefsPath:   "~/.local/loopscope/prefs.db",
		},
		Playback: PlaybackConfig{
			DefaultSpeed: 1,
			FPS:          30,
		},
		Render: RenderConfig{
			Lambda:       6,
			MaxParticles: 240,
		},
		Live: LiveConfig{
			NATSURL: "nats://127.0.0.1:4222",
			Subject: "loopscope.analysis",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "~/.local/loopscope/loopscope.log",
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4318",
		},
	}
}

// Default returns a default configuration with environment overrides.
func Default() *Config {
	cfg := New()
	cfg.applyEnv()
	return cfg
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from loopscope.toml in the current
// directory, falling back to defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := LoadFile(filepath.Join(cwd, DefaultFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Load reads path when given, otherwise LoadDefault.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadDefault()
	}
	return LoadFile(path)
}

// LoadEnv reads .env from the current directory if present.
func LoadEnv() {
	_ = godotenv.Load()
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		c.Backend.URL = v
	}
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout_seconds must not be negative")
	}
	if c.Playback.FPS < 0 || c.Playback.FPS > 120 {
		return fmt.Errorf("playback.fps must be between 0 and 120")
	}
	if c.Render.Lambda < 0 {
		return fmt.Errorf("render.lambda must not be negative")
	}
	if c.Render.MaxParticles < 0 {
		return fmt.Errorf("render.max_particles must not be negative")
	}
	return nil
}

// BackendTimeout returns the per-request timeout.
func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 12 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// FrameInterval returns the tick period for the configured FPS.
func (c *Config) FrameInterval() time.Duration {
	fps := c.Playback.FPS
	if fps <= 0 {
		fps = 30
	}
	return time.Second / time.Duration(fps)
}

// EpisodesDir returns the expanded episodes directory.
func (c *Config) EpisodesDir() string { return ExpandPath(c.Storage.EpisodesDir) }

// PrefsPath returns the expanded preferences database path.
func (c *Config) PrefsPath() string { return ExpandPath(c.Storage.PrefsPath) }

// LogFile returns the expanded log file path.
func (c *Config) LogFile() string { return ExpandPath(c.Logging.File) }

// ExpandPath replaces a leading ~ with the home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[1:])
	}
	return p
}
