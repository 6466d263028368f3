package watcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServer accepts sockets, checks the handshake and hands each one to
// handle together with its 1-based sequence number.
type testServer struct {
	url     string
	accepts atomic.Int32

	mu     sync.Mutex
	tokens []string
}

func newTestServer(t *testing.T, handle func(ctx context.Context, n int, conn *websocket.Conn)) *testServer {
	t.Helper()

	ts := &testServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		n := int(ts.accepts.Add(1))

		var hs handshake
		if err := wsjson.Read(r.Context(), conn, &hs); err != nil {
			return
		}
		if hs.Type != "connect" {
			return
		}

		ts.mu.Lock()
		ts.tokens = append(ts.tokens, hs.Token)
		ts.mu.Unlock()

		handle(r.Context(), n, conn)
	}))
	t.Cleanup(srv.Close)

	ts.url = "ws" + strings.TrimPrefix(srv.URL, "http")

	return ts
}

func (ts *testServer) count() int { return int(ts.accepts.Load()) }

func hold(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func hangUp(_ context.Context, conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusGoingAway, "bye")
}

func fast() ReconnectPolicy {
	return ReconnectPolicy{Delay: 20 * time.Millisecond, Multiplier: 1}
}

func start(t *testing.T, cfg Config) *Connection {
	t.Helper()

	c, err := Start(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(c.Dispose)

	return c
}

func waitDone(t *testing.T, c *Connection) {
	t.Helper()

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not stop")
	}
}

func TestStart_Validation(t *testing.T) {
	_, err := Start(context.Background(), Config{Token: "t"})
	assert.ErrorIs(t, err, ErrNoURL)

	_, err = Start(context.Background(), Config{URL: "ws://localhost"})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestHandshakeAndEvents(t *testing.T) {
	ts := newTestServer(t, func(ctx context.Context, _ int, conn *websocket.Conn) {
		for _, msg := range []string{
			`{"type":"state_change"}`,
			`not json`,
			`{"type":"card_ready"}`,
			`{"data":{}}`,
			`{"type":"balance_change","data":{"accountId":"a1"}}`,
			`{"type":"error","message":"invalid-token"}`,
		} {
			if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				return
			}
		}
		hold(ctx, conn)
	})

	events := make(chan Event, 8)
	c := start(t, Config{
		URL:     ts.url,
		Token:   "jwt-1",
		Policy:  fast(),
		Handler: func(e Event) { events <- e },
	})
	assert.NotEmpty(t, c.ID())
	assert.Equal(t, "jwt-1", c.Token())

	var got []Event
	for len(got) < 3 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d events", len(got))
		}
	}

	assert.Equal(t, StateChange, got[0].Type)
	assert.Equal(t, BalanceChange, got[1].Type)
	assert.JSONEq(t, `{"accountId":"a1"}`, string(got[1].Data))
	assert.Equal(t, Event{Type: ErrorEvent, Message: "invalid-token"}, got[2])

	ts.mu.Lock()
	assert.Equal(t, []string{"jwt-1"}, ts.tokens)
	ts.mu.Unlock()
}

func TestReconnectsOnceAfterUnexpectedClose(t *testing.T) {
	ts := newTestServer(t, func(ctx context.Context, n int, conn *websocket.Conn) {
		if n == 1 {
			hangUp(ctx, conn)
			return
		}
		hold(ctx, conn)
	})

	var opens atomic.Int32
	c := start(t, Config{URL: ts.url, Token: "jwt", Policy: fast(), OnOpen: func(string) { opens.Add(1) }})

	require.Eventually(t, func() bool { return ts.count() == 2 }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, ts.count())
	assert.Equal(t, int32(2), opens.Load())

	c.Dispose()
	waitDone(t, c)
	assert.True(t, c.Disposed())
}

func TestNoReconnectAfterDispose(t *testing.T) {
	ts := newTestServer(t, func(ctx context.Context, _ int, conn *websocket.Conn) { hold(ctx, conn) })

	opened := make(chan struct{}, 1)
	c := start(t, Config{URL: ts.url, Token: "jwt", Policy: fast(), OnOpen: func(string) { opened <- struct{}{} }})

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("socket never opened")
	}

	c.Dispose()
	c.Dispose()
	waitDone(t, c)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, ts.count())
}

func TestDialFailuresExhaustPolicy(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := start(t, Config{
		URL:    url,
		Token:  "jwt",
		Policy: ReconnectPolicy{Delay: 5 * time.Millisecond, MaxAttempts: 2},
	})

	waitDone(t, c)
}

func TestAttemptsResetOnOpen(t *testing.T) {
	ts := newTestServer(t, func(ctx context.Context, n int, conn *websocket.Conn) {
		if n <= 3 {
			hangUp(ctx, conn)
			return
		}
		hold(ctx, conn)
	})

	c := start(t, Config{
		URL:    ts.url,
		Token:  "jwt",
		Policy: ReconnectPolicy{Delay: 5 * time.Millisecond, MaxAttempts: 1},
	})

	require.Eventually(t, func() bool { return ts.count() == 4 }, 5*time.Second, 5*time.Millisecond)

	select {
	case <-c.Done():
		t.Fatal("connection stopped although every socket opened")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestContextCancelStops(t *testing.T) {
	ts := newTestServer(t, func(ctx context.Context, _ int, conn *websocket.Conn) { hold(ctx, conn) })

	ctx, cancel := context.WithCancel(context.Background())
	opened := make(chan struct{}, 1)
	c, err := Start(ctx, Config{URL: ts.url, Token: "jwt", Policy: fast(), OnOpen: func(string) { opened <- struct{}{} }})
	require.NoError(t, err)

	<-opened
	cancel()
	waitDone(t, c)
	assert.Equal(t, 1, ts.count())
}
