// Package episode tracks loading of the episode currently selected for
// replay. Loads are identified by a generation so that a response arriving
// after a newer request was issued is discarded.
package episode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vinayprograms/loopscope/internal/logging"
	"github.com/vinayprograms/loopscope/internal/replay"
)

// DefaultTimeout bounds a single episode load.
const DefaultTimeout = 12 * time.Second

// ErrTimeout marks a load that exceeded its deadline.
var ErrTimeout = errors.New("episode load timed out")

// Store is the replay store the session reads from.
type Store interface {
	ListEpisodes(ctx context.Context) ([]replay.Summary, error)
	GetEpisode(ctx context.Context, id string) (*replay.Episode, error)
	SeedDemo(ctx context.Context, preset string) (replay.Seeded, error)
}

// Request identifies one load. Only the most recently issued request is
// applied by Resolve.
type Request struct {
	ID  string
	Gen uint64
}

// Result is the outcome of fetching a Request.
type Result struct {
	Request
	Episode *replay.Episode
	Err     error
	Elapsed time.Duration
}

// Session holds {loading, error, episode} for the selected episode id.
// All methods except Fetch must be called from the owning goroutine.
type Session struct {
	timeout time.Duration
	logger  *logging.Logger

	id      string
	gen     uint64
	loading bool
	err     error
	episode *replay.Episode
	frames  *replay.FrameStore
}

// Option configures a Session.
type Option func(*Session)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for load outcomes.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates an empty session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
		frames:  replay.NewFrameStore(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Loading reports whether a load is in flight.
func (s *Session) Loading() bool { return s.loading }

// Err returns the last load failure, if any.
func (s *Session) Err() error { return s.err }

// Episode returns the loaded episode, or nil.
func (s *Session) Episode() *replay.Episode { return s.episode }

// Frames returns the sorted frames of the loaded episode.
func (s *Session) Frames() *replay.FrameStore { return s.frames }

// EpisodeID returns the selected episode id.
func (s *Session) EpisodeID() string { return s.id }

// Begin starts a load of id and supersedes any request still in flight.
// An empty id clears the session.
func (s *Session) Begin(id string) Request {
	s.gen++
	// A reload of the same id keeps showing the old episode until it resolves.
	if id != s.id || id == "" {
		s.episode = nil
		s.frames = replay.NewFrameStore(nil)
	}
	s.id = id
	s.err = nil
	s.loading = id != ""
	return Request{ID: id, Gen: s.gen}
}

// Reload re-issues the load for the current id.
func (s *Session) Reload() Request {
	return s.Begin(s.id)
}

// Fetch performs the I/O for req. It reads only immutable configuration
// and may run on any goroutine.
func (s *Session) Fetch(ctx context.Context, store Store, req Request) Result {
	res := Result{Request: req}
	if req.ID == "" {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := otel.Tracer("loopscope/episode").Start(ctx, "episode.load")
	span.SetAttributes(
		attribute.String("episode.id", req.ID),
		attribute.Int64("episode.generation", int64(req.Gen)),
	)
	defer span.End()

	start := time.Now()
	ep, err := store.GetEpisode(ctx, req.ID)
	res.Elapsed = time.Since(start)

	switch {
	case err == nil && ep == nil:
		err = fmt.Errorf("%s: %w", req.ID, replay.ErrNotFound)
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, s.timeout, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.Err = err
		return res
	}

	res.Episode = replay.Normalize(ep)
	span.SetAttributes(attribute.Int("episode.frames", len(res.Episode.Frames)))
	return res
}

// Resolve applies res if it answers the latest request and reports whether
// it did. Stale results are dropped.
func (s *Session) Resolve(res Result) bool {
	if res.Gen != s.gen {
		return false
	}
	s.loading = false
	if res.Err != nil {
		s.err = res.Err
		s.episode = nil
		s.frames = replay.NewFrameStore(nil)
		s.logger.EpisodeFailed(res.ID, res.Err)
		return true
	}
	s.err = nil
	s.episode = res.Episode
	if res.Episode != nil {
		s.frames = replay.NewFrameStore(res.Episode.Frames)
		s.logger.EpisodeLoaded(res.ID, s.frames.Len(), res.Episode.Duration, res.Elapsed)
	} else {
		s.frames = replay.NewFrameStore(nil)
	}
	return true
}

// Load runs Begin, Fetch and Resolve synchronously and returns the
// resulting error.
func (s *Session) Load(ctx context.Context, store Store, id string) error {
	req := s.Begin(id)
	s.Resolve(s.Fetch(ctx, store, req))
	return s.err
}
