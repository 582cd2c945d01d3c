package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CZERTAINLY/devserver/internal/classify"
	"github.com/CZERTAINLY/devserver/internal/model"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mx    sync.Mutex
	lines []string
}

func (r *recorder) classify(line string) (model.URL, error) {
	r.mx.Lock()
	r.lines = append(r.lines, line)
	r.mx.Unlock()
	return classify.URL(line)
}

func feed(events ...Event) <-chan Event {
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestLoop(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario string
		lines    []string
		url      string
		calls    int
	}{
		{
			scenario: "no marker",
			lines:    []string{"compiling", "https://secure.example.com", "done"},
			calls:    0,
		},
		{
			scenario: "single",
			lines:    []string{"compiling", "  Local: \x1b[36mhttp://localhost:5173/\x1b[39m"},
			url:      "http://localhost:5173/",
			calls:    1,
		},
		{
			scenario: "first wins",
			lines:    []string{"http://localhost:3000/", "http://localhost:3001/", "restarted http://localhost:3002/"},
			url:      "http://localhost:3000/",
			calls:    1,
		},
		{
			scenario: "failure then success",
			lines:    []string{"broken http://", "http://127.0.0.1:8080/", "http://127.0.0.1:9090/"},
			url:      "http://127.0.0.1:8080/",
			calls:    2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			rec := &recorder{}
			d := NewDevServer()
			d.classify = rec.classify

			events := []Event{{Kind: EventStarted, PID: 4242}}
			for _, line := range tc.lines {
				events = append(events, Event{Kind: EventStdout, Text: line})
				events = append(events, Event{Kind: EventStderr, Text: "stderr " + line})
			}
			events = append(events, Event{Kind: EventExited, ExitCode: 0})

			d.loop(t.Context(), feed(events...))

			require.Equal(t, StateExited, d.State())
			require.Equal(t, 4242, d.PID())
			require.Equal(t, 0, d.ExitCode())
			require.Len(t, rec.lines, tc.calls)
			for _, line := range rec.lines {
				require.True(t, strings.Contains(line, classify.Marker), line)
			}

			u, ok := d.URL()
			if tc.url == "" {
				require.False(t, ok)
				select {
				case <-d.Ready():
					t.Fatal("ready without url")
				default:
				}
				return
			}
			require.True(t, ok)
			require.Equal(t, tc.url, u.String())
			select {
			case <-d.Ready():
			default:
				t.Fatal("not ready")
			}
		})
	}
}

func TestLoop_StopAfterExit(t *testing.T) {
	t.Parallel()
	d := NewDevServer()

	events := make(chan Event)
	go d.loop(t.Context(), events)
	events <- Event{Kind: EventStarted, PID: 4242}
	events <- Event{Kind: EventExited, ExitCode: 7}
	require.Eventually(t, func() bool {
		return d.State() == StateExited
	}, 5*time.Second, time.Millisecond)

	// the runner closes the stream only after this Stop
	d.stop.Fire()
	close(events)
	<-d.Done()
	require.Equal(t, StateExited, d.State())
	require.Equal(t, 7, d.ExitCode())
}

func TestLoop_Cancelled(t *testing.T) {
	t.Parallel()
	d := NewDevServer()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	events := make(chan Event)
	go d.loop(ctx, events)
	require.Eventually(t, func() bool {
		return d.State() == StateCancelling
	}, 5*time.Second, time.Millisecond)

	// cancelled loop keeps draining until the runner closes the stream
	events <- Event{Kind: EventStdout, Text: "http://localhost:1/"}
	events <- Event{Kind: EventExited, ExitCode: -1}
	close(events)
	<-d.Done()
	require.Equal(t, StateCancelled, d.State())
	require.Equal(t, -1, d.ExitCode())
	_, ok := d.URL()
	require.False(t, ok)
}

func TestReadyGate(t *testing.T) {
	t.Parallel()
	g := newReadyGate()
	_, ok := g.URL()
	require.False(t, ok)
	require.False(t, g.Set(model.URL{}))

	first, err := classify.URL("http://localhost:1/")
	require.NoError(t, err)
	second, err := classify.URL("http://localhost:2/")
	require.NoError(t, err)

	require.True(t, g.Set(first))
	require.False(t, g.Set(second))
	u, ok := g.URL()
	require.True(t, ok)
	require.Equal(t, "http://localhost:1/", u.String())

	// handed out values are copies
	u.Host = "example.com"
	u, _ = g.URL()
	require.Equal(t, "localhost:1", u.Host)
	<-g.Wait()
}

func TestFuse(t *testing.T) {
	t.Parallel()
	f := newFuse()
	require.False(t, f.Fired())
	f.Fire()
	f.Fire()
	require.True(t, f.Fired())
	<-f.Selectable()
}
