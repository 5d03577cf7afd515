// Package replaystore keeps replay episodes as JSON files in a local
// directory. Episodes live in current/, deleted ones move to archive/ and
// files that fail to decode are quarantined in corrupt/.
package replaystore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/loopscope/internal/logging"
	"github.com/vinayprograms/loopscope/internal/replay"
)

const (
	// DefaultMaxFrames caps the frames kept per episode.
	DefaultMaxFrames = 2000
	// WarnFrameLimit is reported when the oldest frame was dropped.
	WarnFrameLimit = "frame_limit_reached_oldest_dropped"
	// minStep separates a frame from its predecessor when its time does
	// not advance.
	minStep = 1e-3
)

// ErrInvalidID is returned for ids with no usable characters.
var ErrInvalidID = errors.New("invalid episode_id")

// FileStore is a directory of episode files. It is safe for concurrent use
// within one process.
type FileStore struct {
	mu        sync.Mutex
	current   string
	archive   string
	corrupt   string
	maxFrames int
	now       func() time.Time
	logger    *logging.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithMaxFrames overrides DefaultMaxFrames.
func WithMaxFrames(n int) Option {
	return func(s *FileStore) {
		if n > 0 {
			s.maxFrames = n
		}
	}
}

// WithLogger sets the logger for quarantine notices.
func WithLogger(l *logging.Logger) Option {
	return func(s *FileStore) { s.logger = l.WithComponent("replaystore") }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// Open prepares the store rooted at dir, creating its subdirectories.
func Open(dir string, opts ...Option) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("episodes directory is required")
	}
	s := &FileStore{
		current:   filepath.Join(dir, "current"),
		archive:   filepath.Join(dir, "archive"),
		corrupt:   filepath.Join(dir, "corrupt"),
		maxFrames: DefaultMaxFrames,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, d := range []string{s.current, s.archive, s.corrupt} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return s, nil
}

// safeID keeps letters, digits, '-' and '_'.
func safeID(id string) (string, error) {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, id)
	if safe == "" {
		return "", ErrInvalidID
	}
	return safe, nil
}

func (s *FileStore) path(id string) (string, error) {
	safe, err := safeID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.current, safe+".json"), nil
}

// CreateEpisode writes a new empty episode.
func (s *FileStore) CreateEpisode(ctx context.Context, title string) (*replay.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(title)
}

func (s *FileStore) create(title string) (*replay.Episode, error) {
	now := s.now()
	ep := &replay.Episode{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		Title:     title,
		Frames:    []replay.Frame{},
		Version:   replay.SchemaVersion,
	}
	if err := s.write(ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// AppendFrame adds f to the episode. A frame whose time does not advance
// past the last frame is moved just after it. When the episode exceeds the
// frame cap the oldest frames are dropped and WarnFrameLimit is returned.
func (s *FileStore) AppendFrame(ctx context.Context, id string, f replay.Frame) (*replay.Episode, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendFrame(id, f)
}

func (s *FileStore) appendFrame(id string, f replay.Frame) (*replay.Episode, []string, error) {
	ep, err := s.get(id)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	lastT := 0.0
	if n := len(ep.Frames); n > 0 {
		lastT = ep.Frames[n-1].T
	}
	t := f.T
	if math.IsNaN(t) || math.IsInf(t, 0) {
		t = lastT
	}
	if t <= lastT {
		t = lastT + minStep
	}
	f.T = t
	if f.SystemSignals == nil {
		f.SystemSignals = map[string]float64{}
	}
	if f.Meta.Tags == nil {
		f.Meta.Tags = []string{}
	}

	frames := append(slices.Clip(ep.Frames), f)
	if drop := len(frames) - s.maxFrames; drop > 0 {
		frames = frames[drop:]
		warnings = append(warnings, WarnFrameLimit)
	}
	ep.Frames = frames
	ep.UpdatedAt = s.now()
	ep = replay.Normalize(ep)

	if err := s.write(ep); err != nil {
		return nil, nil, err
	}
	return ep, warnings, nil
}

// GetEpisode reads one episode. A file that fails to decode is moved to
// corrupt/ and reported as both replay.ErrCorrupt and replay.ErrNotFound.
func (s *FileStore) GetEpisode(ctx context.Context, id string) (*replay.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *FileStore) get(id string) (*replay.Episode, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", id, replay.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read episode %s: %w", id, err)
	}
	ep, err := replay.DecodeEpisode(data)
	if err != nil {
		s.quarantine(path)
		return nil, fmt.Errorf("%s: %w: %w", id, err, replay.ErrNotFound)
	}
	return ep, nil
}

// ListEpisodes summarizes every readable episode, oldest first. Corrupt
// files are quarantined and skipped.
func (s *FileStore) ListEpisodes(ctx context.Context) ([]replay.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.current, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	out := make([]replay.Summary, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		ep, err := replay.DecodeEpisode(data)
		if err != nil {
			s.quarantine(path)
			continue
		}
		out = append(out, ep.Summarize())
	}
	slices.SortStableFunc(out, func(a, b replay.Summary) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Delete moves the episode to archive/.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.path(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", id, replay.ErrNotFound)
	}
	dst := filepath.Join(s.archive, filepath.Base(src))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("archive episode %s: %w", id, err)
	}
	return nil
}

// SeedDemo creates an episode from a built-in demo preset.
func (s *FileStore) SeedDemo(ctx context.Context, preset string) (replay.Seeded, error) {
	demo, ok := demos[preset]
	if !ok {
		return replay.Seeded{}, fmt.Errorf("unknown demo_id %q", preset)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ep, err := s.create(demo.title)
	if err != nil {
		return replay.Seeded{}, err
	}
	for i := range demo.lines {
		if err := ctx.Err(); err != nil {
			return replay.Seeded{}, err
		}
		f, err := demo.frame(i)
		if err != nil {
			return replay.Seeded{}, fmt.Errorf("build demo frame %d: %w", i, err)
		}
		if ep, _, err = s.appendFrame(ep.ID, f); err != nil {
			return replay.Seeded{}, err
		}
	}
	return replay.Seeded{ID: ep.ID, Title: ep.Title, FrameCount: len(ep.Frames)}, nil
}

func (s *FileStore) quarantine(path string) {
	dst := filepath.Join(s.corrupt, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		s.logger.Error("quarantine failed", map[string]any{"path": path, "error": err.Error()})
		return
	}
	s.logger.Warn("corrupt episode quarantined", map[string]any{"path": dst})
}

// write replaces the episode file atomically.
func (s *FileStore) write(ep *replay.Episode) error {
	path, err := s.path(ep.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(ep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode episode %s: %w", ep.ID, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write episode %s: %w", ep.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write episode %s: %w", ep.ID, err)
	}
	return nil
}
