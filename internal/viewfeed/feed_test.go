package viewfeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type frame struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// renderer accepts one connection, forwards the first frame it reads and then
// sends a command frame back.
func renderer(t *testing.T, got chan<- frame) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		var f frame
		if err := wsjson.Read(ctx, c, &f); err != nil {
			return
		}
		got <- f
		_ = wsjson.Write(ctx, c, map[string]any{"type": "command", "data": "next"})
		// hold the connection until the client goes away
		_, _, _ = c.Read(context.Background())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPublishAndReceiveCommand(t *testing.T) {
	got := make(chan frame, 1)
	srv := renderer(t, got)
	f := New("ws"+strings.TrimPrefix(srv.URL, "http"), 0)

	commands := make(chan string, 1)
	f.OnMessage(func(m *Message) {
		if line, ok := m.Command(); ok {
			commands <- line
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if f.State() != StateConnected {
		t.Fatalf("state = %s", f.State())
	}
	if err := f.Publish(ctx, frame{Type: "snapshot", Index: 3}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case fr := <-got:
		if fr.Type != "snapshot" || fr.Index != 3 {
			t.Fatalf("renderer got %+v", fr)
		}
	case <-ctx.Done():
		t.Fatalf("renderer never received the snapshot")
	}
	select {
	case line := <-commands:
		if line != "next" {
			t.Fatalf("command = %q", line)
		}
	case <-ctx.Done():
		t.Fatalf("command frame not relayed")
	}

	if err := f.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Publish(ctx, frame{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Publish after close = %v", err)
	}
}

func TestDryRunNeverDials(t *testing.T) {
	f := New("ws://127.0.0.1:1/unused", 3, WithDryRun(true))
	ctx := context.Background()
	if err := f.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := f.Publish(ctx, frame{Type: "snapshot"}); err != nil {
		t.Fatalf("dry-run publish: %v", err)
	}
	if err := f.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestConnectFailureWithoutRetriesFails(t *testing.T) {
	f := New("ws://127.0.0.1:1/unused", 0)
	states := make(chan State, 4)
	f.OnStateChange(func(s State) { states <- s })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.Connect(ctx); err == nil {
		t.Fatalf("expected dial error")
	}
	if f.State() != StateFailed {
		t.Fatalf("state = %s", f.State())
	}
	if first := <-states; first != StateConnecting {
		t.Fatalf("first transition = %s", first)
	}
}

func TestCommandIgnoresOtherFrames(t *testing.T) {
	m := &Message{Type: "ping", Data: []byte(`"next"`)}
	if _, ok := m.Command(); ok {
		t.Fatalf("non-command frame treated as command")
	}
	m = &Message{Type: "command", Data: []byte(`42`)}
	if _, ok := m.Command(); ok {
		t.Fatalf("non-string data accepted")
	}
}

func TestHandshakeCarriesBearerToken(t *testing.T) {
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		_, _, _ = c.Read(context.Background())
	}))
	t.Cleanup(srv.Close)

	f := New("ws"+strings.TrimPrefix(srv.URL, "http"), 0, WithHeaderProvider(BearerToken("s3cret")))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer f.Close(ctx)
	if got := <-auth; got != "Bearer s3cret" {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestBearerTokenEmptySendsNothing(t *testing.T) {
	if BearerToken("  ") != nil {
		t.Fatalf("empty token should yield no provider")
	}
	f := New("ws://unused", 0, WithHeaderProvider(BearerToken("")))
	if len(f.buildHeaders()) != 0 {
		t.Fatalf("headers = %v", f.buildHeaders())
	}
}

func TestWithPingInterval(t *testing.T) {
	if f := New("ws://unused", 0, WithPingInterval(50*time.Millisecond)); f.pingInterval != 50*time.Millisecond {
		t.Fatalf("pingInterval = %v", f.pingInterval)
	}
	if f := New("ws://unused", 0, WithPingInterval(0)); f.pingInterval != 30*time.Second {
		t.Fatalf("zero must keep the default, got %v", f.pingInterval)
	}
}
