// Package livefeed receives live VisualState updates over NATS. Each message
// is either a full analysis result carrying a "visual" field or a bare
// VisualState document.
package livefeed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vinayprograms/loopscope/internal/logging"
	"github.com/vinayprograms/loopscope/internal/replay"
)

const (
	// DefaultURL is the NATS server used when none is configured.
	DefaultURL = nats.DefaultURL
	// DefaultSubject carries analysis results.
	DefaultSubject = "loopscope.analysis"
)

// ErrNoVisual is returned for messages without a visual payload.
var ErrNoVisual = errors.New("message has no visual payload")

// Update is one live payload. Visual is left unvalidated; the view decides
// what to do with a payload that fails the schema.
type Update struct {
	EpisodeID string
	Visual    []byte
	Warnings  []string
	Received  time.Time
}

// Decode extracts an Update from a message body.
func Decode(data []byte) (Update, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Update{}, fmt.Errorf("decode live message: %w", err)
	}
	if _, ok := fields["visual"]; !ok {
		if _, bare := fields["nodes"]; bare {
			return Update{Visual: bytes.Clone(data)}, nil
		}
		return Update{}, ErrNoVisual
	}

	var a replay.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return Update{}, fmt.Errorf("decode live message: %w", err)
	}
	v := bytes.TrimSpace(a.Visual)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return Update{}, ErrNoVisual
	}
	return Update{EpisodeID: a.EpisodeID, Visual: v, Warnings: a.Warnings}, nil
}

// Subscriber delivers the most recent update on a channel. A consumer that
// falls behind sees only the newest payload.
type Subscriber struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	updates chan Update
	logger  *logging.Logger
	now     func() time.Time

	mu     sync.Mutex
	closed bool
}

// Subscribe connects to url and listens on subject.
func Subscribe(url, subject string, logger *logging.Logger) (*Subscriber, error) {
	if url == "" {
		url = DefaultURL
	}
	if subject == "" {
		subject = DefaultSubject
	}
	s := newSubscriber(logger)

	nc, err := nats.Connect(url,
		nats.Name("loopscope"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("live feed disconnected", map[string]any{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			s.logger.Info("live feed reconnected", map[string]any{"url": c.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	sub, err := nc.Subscribe(subject, func(m *nats.Msg) { s.handle(m.Data) })
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.conn = nc
	s.sub = sub
	s.logger.Info("live feed subscribed", map[string]any{"url": url, "subject": subject})
	return s, nil
}

func newSubscriber(logger *logging.Logger) *Subscriber {
	return &Subscriber{
		updates: make(chan Update, 1),
		logger:  logger.WithComponent("livefeed"),
		now:     time.Now,
	}
}

// Updates returns the delivery channel. It is closed by Close.
func (s *Subscriber) Updates() <-chan Update { return s.updates }

func (s *Subscriber) handle(data []byte) {
	u, err := Decode(data)
	if err != nil {
		s.logger.Warn("live message dropped", map[string]any{"error": err.Error()})
		return
	}
	u.Received = s.now()
	s.deliver(u)
}

// deliver replaces any undelivered update with u.
func (s *Subscriber) deliver(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- u
}

// Close unsubscribes, drains the connection and closes Updates.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.updates)
	s.mu.Unlock()

	var err error
	if s.sub != nil {
		err = s.sub.Unsubscribe()
	}
	if s.conn != nil {
		if derr := s.conn.Drain(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// Publisher sends analysis results to a live feed subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to url for publishing on subject.
func NewPublisher(url, subject string) (*Publisher, error) {
	if url == "" {
		url = DefaultURL
	}
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url, nats.Name("loopscope-publisher"))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	return &Publisher{conn: nc, subject: subject}, nil
}

// Publish sends a and flushes.
func (p *Publisher) Publish(a replay.Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return p.conn.Flush()
}

// Close drains and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
