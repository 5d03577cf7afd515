// Package backend is the HTTP client for the analysis and replay service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vinayprograms/loopscope/internal/logging"
	"github.com/vinayprograms/loopscope/internal/replay"
)

const (
	// DefaultURL is used when no backend URL is configured.
	DefaultURL = "http://localhost:8000"
	// DefaultTimeout bounds each request.
	DefaultTimeout = 12 * time.Second
	// maxTries is the first attempt plus one retry.
	maxTries = 2
)

// Presets are the demo episodes the backend can seed.
var Presets = []string{"growth", "fixes", "escalation"}

var tracer = otel.Tracer("loopscope/backend")

// Client talks to the backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retryDelay time.Duration
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryDelay sets the pause before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent("backend") }
}

// New creates a client for baseURL. An empty baseURL uses DefaultURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		retryDelay: 500 * time.Millisecond,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string { return c.baseURL }

// ListEpisodes returns the stored episode summaries.
func (c *Client) ListEpisodes(ctx context.Context) ([]replay.Summary, error) {
	var out []replay.Summary
	if err := c.do(ctx, "list_episodes", http.MethodGet, "/replay/episodes", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []replay.Summary{}
	}
	return out, nil
}

// GetEpisode fetches one episode. A missing episode returns an error
// matching replay.ErrNotFound.
func (c *Client) GetEpisode(ctx context.Context, id string) (*replay.Episode, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("get episode: %w", replay.ErrNotFound)
	}
	var out replay.Episode
	path := "/replay/episodes/" + url.PathEscape(id)
	if err := c.do(ctx, "get_episode", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Frames == nil {
		out.Frames = []replay.Frame{}
	}
	return &out, nil
}

// SeedDemo asks the backend to build a demo episode from a preset.
func (c *Client) SeedDemo(ctx context.Context, preset string) (replay.Seeded, error) {
	var out replay.Seeded
	body := map[string]string{"demo_id": preset}
	if err := c.do(ctx, "seed_demo", http.MethodPost, "/replay/demo/seed", body, &out); err != nil {
		return replay.Seeded{}, err
	}
	return out, nil
}

// CreateEpisode starts an empty episode and returns its id.
func (c *Client) CreateEpisode(ctx context.Context, title string) (string, error) {
	var out struct {
		ID string `json:"episode_id"`
	}
	body := map[string]any{"title": nil}
	if title != "" {
		body["title"] = title
	}
	if err := c.do(ctx, "create_episode", http.MethodPost, "/replay/episodes", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Analyze runs the full analysis pipeline on text. With a non-empty
// episodeID the backend also records the result as a frame.
func (c *Client) Analyze(ctx context.Context, text, episodeID string) (*replay.Analysis, error) {
	body := map[string]any{"text": text}
	if episodeID != "" {
		body["episode_id"] = episodeID
	}
	var out replay.Analysis
	if err := c.do(ctx, "analyze", http.MethodPost, "/analyze/full", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one call with a single retry on connectivity failures.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	ctx, span := tracer.Start(ctx, "backend."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		b, err := c.roundTrip(ctx, op, method, path, payload)
		if err != nil && !isConnectivity(err) {
			return nil, backoff.Permanent(err)
		}
		return b, err
	},
		backoff.WithMaxTries(maxTries),
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithNotify(func(err error, _ time.Duration) {
			c.logger.BackendRetry(op, attempt, err)
		}),
	)
	span.SetAttributes(attribute.Int("attempts", attempt))
	if err != nil {
		err = c.classify(ctx, op, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		err = &Error{Kind: KindDecode, Op: op, Err: err}
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Op: op, Retryable: true, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Retryable: true, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(op, resp.StatusCode, body)
	}
	return body, nil
}

// classify maps a cancelled parent context to a timeout error and leaves
// everything else as returned.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: KindTimeout, Op: op, Retryable: true, Err: ctxErr}
	}
	return &Error{Kind: KindNetwork, Op: op, Retryable: true, Err: err}
}

// isConnectivity reports whether err is a transport failure or an attempt
// that ran past its timeout. HTTP status errors are not retried automatically.
func isConnectivity(err error) bool {
	var be *Error
	return errors.As(err, &be) && (be.Kind == KindNetwork || be.Kind == KindTimeout)
}
