package livefeed

import (
	"errors"
	"testing"
	"time"

	"github.com/vinayprograms/loopscope/internal/logging"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		episode string
		visual  string
		err     error
	}{
		{
			name:    "analysis envelope",
			data:    `{"episode_id":"ep","visual":{"nodes":[],"loops":[],"levers":[]},"warnings":["w"]}`,
			episode: "ep",
			visual:  `{"nodes":[],"loops":[],"levers":[]}`,
		},
		{
			name:   "bare state",
			data:   `{"nodes":[],"loops":[],"levers":[]}`,
			visual: `{"nodes":[],"loops":[],"levers":[]}`,
		},
		{name: "no visual", data: `{"episode_id":"ep"}`, err: ErrNoVisual},
		{name: "null visual", data: `{"visual":null}`, err: ErrNoVisual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Decode([]byte(tt.data))
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if u.EpisodeID != tt.episode || string(u.Visual) != tt.visual {
				t.Errorf("got episode=%q visual=%s", u.EpisodeID, u.Visual)
			}
		})
	}

	if _, err := Decode([]byte("{")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestSubscriber_LatestWins(t *testing.T) {
	s := newSubscriber(logging.Discard())
	s.now = func() time.Time { return time.Unix(10, 0) }

	s.handle([]byte(`{"episode_id":"a","visual":{"nodes":[],"loops":[],"levers":[]}}`))
	s.handle([]byte(`not json`))
	s.handle([]byte(`{"episode_id":"b","visual":{"nodes":[],"loops":[],"levers":[]}}`))

	select {
	case u := <-s.Updates():
		if u.EpisodeID != "b" || !u.Received.Equal(time.Unix(10, 0)) {
			t.Errorf("expected newest update, got %+v", u)
		}
	default:
		t.Fatal("expected an update")
	}
	select {
	case u := <-s.Updates():
		t.Errorf("expected a single pending update, got %+v", u)
	default:
	}
}

func TestSubscriber_Close(t *testing.T) {
	s := newSubscriber(logging.Discard())
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s.deliver(Update{EpisodeID: "late"})
	if _, ok := <-s.Updates(); ok {
		t.Error("expected closed channel")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
