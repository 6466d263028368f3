package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

var (
	// ErrNoToken is returned by Start without a session token.
	ErrNoToken = errors.New("watcher: no token")
	// ErrNoURL is returned by Start without an endpoint.
	ErrNoURL = errors.New("watcher: no url")
)

// Config configures one watched token.
type Config struct {
	URL     string
	Token   string
	Handler Handler
	Policy  ReconnectPolicy
	// OnOpen is called with the connection id after the handshake has been
	// sent on each socket.
	OnOpen     func(id string)
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Connection owns the socket and reconnect timer of one watched token.
type Connection struct {
	id     string
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	socket   *websocket.Conn
	timer    *time.Timer
	closed   bool
	attempts int

	stop chan struct{}
	done chan struct{}
}

// Start opens the socket for cfg.Token in the background and keeps it open
// until Dispose is called or ctx ends.
func Start(ctx context.Context, cfg Config) (*Connection, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	if cfg.Policy == (ReconnectPolicy{}) {
		cfg.Policy = DefaultReconnectPolicy()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Connection{
		id:   uuid.NewString(),
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.logger = logger.With("connection", c.id)

	go c.run(ctx)

	return c, nil
}

// ID returns the connection id used in logs.
func (c *Connection) ID() string { return c.id }

// Token returns the watched session token.
func (c *Connection) Token() string { return c.cfg.Token }

// Done is closed when the connection has stopped for good.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Disposed reports whether Dispose has been called.
func (c *Connection) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Dispose stops reconnecting and closes the active socket. A connect in
// progress completes and is closed immediately afterwards. Dispose is
// idempotent.
func (c *Connection) Dispose() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	socket := c.socket
	c.mu.Unlock()

	close(c.stop)

	if socket != nil {
		_ = socket.Close(websocket.StatusNormalClosure, "disposed")
	}

	c.logger.Debug("watcher: disposed")
}

func (c *Connection) run(ctx context.Context) {
	defer close(c.done)

	for {
		err := c.session(ctx)
		if c.Disposed() || ctx.Err() != nil {
			return
		}

		c.logger.Warn("watcher: socket closed", "error", err)

		if !c.wait(ctx) {
			return
		}
	}
}

// wait blocks for the next reconnect delay. It returns false when the
// connection was disposed or the policy gave up.
func (c *Connection) wait(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}

	c.attempts++
	attempt := c.attempts

	delay, ok := c.cfg.Policy.Next(attempt)
	if !ok {
		c.mu.Unlock()
		c.logger.Warn("watcher: giving up", "attempts", attempt-1)
		return false
	}

	t := time.NewTimer(delay)
	c.timer = t
	c.mu.Unlock()

	c.logger.Debug("watcher: reconnect scheduled", "attempt", attempt, "delay", delay)

	select {
	case <-t.C:
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		return true
	case <-c.stop:
		return false
	case <-ctx.Done():
		t.Stop()
		return false
	}
}

// session dials, sends the handshake and forwards events until the socket
// closes.
func (c *Connection) session(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, &websocket.DialOptions{
		HTTPClient: c.cfg.HTTPClient,
	})
	if err != nil {
		return fmt.Errorf("watcher: dial: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "disposed")
		return nil
	}
	c.socket = conn
	c.attempts = 0
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.socket = nil
		c.mu.Unlock()
		_ = conn.CloseNow()
	}()

	if err := wsjson.Write(ctx, conn, connectMessage(c.cfg.Token)); err != nil {
		return fmt.Errorf("watcher: handshake: %w", err)
	}

	c.logger.Debug("watcher: connected")

	if c.cfg.OnOpen != nil {
		c.cfg.OnOpen(c.id)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			c.logger.Warn("watcher: dropping malformed event", "error", err)
			continue
		}
		if !ev.Type.Known() {
			c.logger.Debug("watcher: ignoring event", "type", ev.Type)
			continue
		}

		if c.cfg.Handler != nil {
			c.cfg.Handler(ev)
		}
	}
}
