package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/vinayprograms/loopscope/internal/episode"
	"github.com/vinayprograms/loopscope/internal/replay"
)

// followDebounce coalesces the burst of events a single atomic write makes.
const followDebounce = 150 * time.Millisecond

// Follower reports changes to one episode file.
type Follower struct {
	path    string
	watcher *fsnotify.Watcher
}

// Follow watches path. The parent directory is watched so that writers
// replacing the file through a rename are still seen.
func Follow(path string) (*Follower, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Follower{path: abs, watcher: w}, nil
}

// Path returns the watched file.
func (f *Follower) Path() string { return f.path }

// Close stops watching.
func (f *Follower) Close() error { return f.watcher.Close() }

// wait blocks until the file changes and returns fileChangedMsg, or nil once
// the watcher is closed.
func (f *Follower) wait() tea.Cmd {
	return func() tea.Msg {
		var pending <-chan time.Time
		for {
			select {
			case ev, ok := <-f.watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != f.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					pending = time.After(followDebounce)
				}
			case _, ok := <-f.watcher.Errors:
				if !ok {
					return nil
				}
			case <-pending:
				return fileChangedMsg{path: f.path}
			}
		}
	}
}

var _ episode.Store = (*FileStore)(nil)

// FileStore serves a single episode file as a replay store. The episode id
// is the file's base name without extension.
type FileStore struct {
	path string
}

// NewFileStore wraps path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// ID returns the episode id the file is served under.
func (s *FileStore) ID() string {
	base := filepath.Base(s.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *FileStore) load() (*replay.Episode, error) {
	ep, err := replay.LoadFile(s.path)
	if err != nil {
		return nil, err
	}
	if ep.ID == "" {
		ep.ID = s.ID()
	}
	return ep, nil
}

// ListEpisodes returns the one episode.
func (s *FileStore) ListEpisodes(ctx context.Context) ([]replay.Summary, error) {
	ep, err := s.load()
	if err != nil {
		return nil, err
	}
	return []replay.Summary{ep.Summarize()}, nil
}

// GetEpisode reads the file. Any id other than ID is not found.
func (s *FileStore) GetEpisode(ctx context.Context, id string) (*replay.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id != s.ID() {
		return nil, fmt.Errorf("%s: %w", id, replay.ErrNotFound)
	}
	return s.load()
}

// SeedDemo is not supported on a single file.
func (s *FileStore) SeedDemo(ctx context.Context, preset string) (replay.Seeded, error) {
	return replay.Seeded{}, fmt.Errorf("cannot seed %q into %s: file is read-only", preset, s.path)
}
