package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"github.com/vinayprograms/loopscope/internal/backend"
	"github.com/vinayprograms/loopscope/internal/config"
	"github.com/vinayprograms/loopscope/internal/episode"
	"github.com/vinayprograms/loopscope/internal/logging"
	"github.com/vinayprograms/loopscope/internal/replaystore"
)

// appContext is what every command runs with.
type appContext struct {
	cfg    *config.Config
	logger *logging.Logger
}

// app loads configuration and applies global flag overrides.
func (g *Globals) app() (*appContext, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Backend != "" {
		cfg.Backend.URL = g.Backend
	}
	if g.Local {
		cfg.Backend.Local = true
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}

	logger := logging.New()
	logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	return &appContext{cfg: cfg, logger: logger}, nil
}

// store returns the configured episode store. The archiver is nil for the
// backend, which has no delete endpoint.
func (a *appContext) store() (episode.Store, *replaystore.FileStore, error) {
	if a.cfg.Backend.Local {
		fs, err := a.localStore()
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil
	}
	return a.backend(), nil, nil
}

func (a *appContext) localStore() (*replaystore.FileStore, error) {
	return replaystore.Open(a.cfg.EpisodesDir(), replaystore.WithLogger(a.logger.WithComponent("store")))
}

func (a *appContext) backend() *backend.Client {
	return backend.New(a.cfg.Backend.URL,
		backend.WithTimeout(a.cfg.BackendTimeout()),
		backend.WithLogger(a.logger.WithComponent("backend")),
	)
}

// logToFile redirects the logger to the configured log file. The returned
// func closes it.
func (a *appContext) logToFile() (func(), error) {
	path := a.cfg.LogFile()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	a.logger.SetOutput(f)
	return func() { f.Close() }, nil
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// isFile reports whether path names an existing regular file.
func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
