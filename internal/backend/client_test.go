package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vinayprograms/loopscope/internal/replay"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithRetryDelay(time.Millisecond)}, opts...)
	return New(srv.URL+"/", opts...)
}

func TestListEpisodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/replay/episodes" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `[{"episode_id":"a","title":"A","frame_count":3,"duration":2.5},
			{"episode_id":"b","title":null,"frame_count":0,"duration":0}]`)
	})

	got, err := c.ListEpisodes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []replay.Summary{
		{ID: "a", Title: "A", FrameCount: 3, Duration: 2.5},
		{ID: "b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summaries (-want +got):\n%s", diff)
	}
}

func TestGetEpisode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/replay/episodes/ep-1" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"episode_id":"ep-1","created_at":"2025-01-01T00:00:00Z",
			"updated_at":"2025-01-01T00:00:00Z","duration":1,"version":"v1",
			"frames":[{"t":0.5,"system_signals":{},"visual":{},"meta":{"tags":[]}}]}`)
	})

	ep, err := c.GetEpisode(context.Background(), "ep-1")
	if err != nil {
		t.Fatal(err)
	}
	if ep.ID != "ep-1" || len(ep.Frames) != 1 || ep.Frames[0].T != 0.5 {
		t.Errorf("unexpected episode: %+v", ep)
	}
}

func TestGetEpisode_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":{"error":{"code":"NOT_FOUND","message":"Episode not found"}}}`)
	})

	_, err := c.GetEpisode(context.Background(), "missing")
	if !errors.Is(err, replay.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if be.Code != "NOT_FOUND" || be.Message != "Episode not found" || be.Retryable {
		t.Errorf("unexpected error fields: %+v", be)
	}
}

func TestSeedDemo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if r.Method != http.MethodPost || body["demo_id"] != "fixes" {
			t.Errorf("unexpected seed request %s %v", r.Method, body)
		}
		io.WriteString(w, `{"episode_id":"new","title":"Demo: Fixes that Fail","frame_count":7}`)
	})

	got, err := c.SeedDemo(context.Background(), "fixes")
	if err != nil {
		t.Fatal(err)
	}
	want := replay.Seeded{ID: "new", Title: "Demo: Fixes that Fail", FrameCount: 7}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestAnalyze(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hello" || body["episode_id"] != "ep" {
			t.Errorf("unexpected body %v", body)
		}
		io.WriteString(w, `{"episode_id":"ep","system_signals":{"load":0.4},
			"visual":{"nodes":[],"loops":[],"levers":[]},"warnings":["w"]}`)
	})

	got, err := c.Analyze(context.Background(), "hello", "ep")
	if err != nil {
		t.Fatal(err)
	}
	if got.EpisodeID != "ep" || got.SystemSignals["load"] != 0.4 || len(got.Warnings) != 1 {
		t.Errorf("unexpected analysis %+v", got)
	}
}

func TestStatusErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail":"analysis failed"}`)
	})

	_, err := c.ListEpisodes(context.Background())
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindHTTP || be.Status != 500 {
		t.Fatalf("expected http error, got %v", err)
	}
	if be.Message != "analysis failed" || !be.Retryable {
		t.Errorf("unexpected error fields: %+v", be)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestConnectivityRetriedOnce(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := New("http://"+addr, WithRetryDelay(time.Millisecond))
	_, err = c.ListEpisodes(context.Background())
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindNetwork || !IsRetryable(err) {
		t.Fatalf("expected retryable network error, got %v", err)
	}
}

func TestConnectivityRecoveredByRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	flaky := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return http.DefaultTransport.RoundTrip(r)
	})
	c := New(srv.URL, WithHTTPClient(&http.Client{Transport: flaky}), WithRetryDelay(time.Millisecond))

	got, err := c.ListEpisodes(context.Background())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(got) != 0 || calls.Load() != 2 {
		t.Errorf("expected empty list after 2 calls, got %v after %d", got, calls.Load())
	}
}

func TestTimeout(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(20*time.Millisecond))
	defer close(release)

	_, err := c.GetEpisode(context.Background(), "slow")
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindTimeout || !be.Retryable {
		t.Fatalf("expected retryable timeout, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected the timed out call to be retried once, got %d calls", n)
	}
}

func TestTimeoutRecoveredByRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			<-r.Context().Done()
			return
		}
		io.WriteString(w, `[]`)
	}, WithTimeout(20*time.Millisecond))

	if _, err := c.ListEpisodes(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 calls, got %d", n)
	}
}

func TestDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{not json`)
	})
	_, err := c.ListEpisodes(context.Background())
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDecodeErrorBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    string
		message string
	}{
		{"envelope", `{"error":{"code":"INVALID_INPUT","message":"text is required"}}`, "INVALID_INPUT", "text is required"},
		{"wrapped", `{"detail":{"error":{"code":"NOT_FOUND","message":"gone"}}}`, "NOT_FOUND", "gone"},
		{"detail string", `{"detail":"analysis failed"}`, "", "analysis failed"},
		{"plain text", "bad gateway\n", "", "bad gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := decodeError("op", 502, []byte(tt.body))
			if e.Code != tt.code || e.Message != tt.message {
				t.Errorf("got code=%q message=%q", e.Code, e.Message)
			}
			if !strings.Contains(e.Error(), tt.message) {
				t.Errorf("error string %q missing message", e.Error())
			}
		})
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
