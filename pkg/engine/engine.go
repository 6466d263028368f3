package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/accountapi"
	"github.com/germanamz/hostbridge/pkg/connections"
	"github.com/germanamz/hostbridge/pkg/device"
	"github.com/germanamz/hostbridge/pkg/enroll"
	"github.com/germanamz/hostbridge/pkg/kv"
	"github.com/germanamz/hostbridge/pkg/status"
	"github.com/germanamz/hostbridge/pkg/tokenstore"
	"github.com/germanamz/hostbridge/pkg/watcher"
)

// ErrNotEnrolled is returned by Watch for an account without a session token.
var ErrNotEnrolled = errors.New("engine: account not enrolled")

// errNoWallets is reported when enrollment runs without a WalletBuilder.
var errNoWallets = errors.New("engine: no wallet builder configured")

// Deps are the host capabilities the engine cannot build from config.
type Deps struct {
	// HTTPClient overrides the client built from service.timeout.
	HTTPClient *http.Client
	Wallets    enroll.WalletBuilder
	Keys       enroll.KeyAuthenticator
	Device     enroll.Device
	// Alerter defaults to logging device failures.
	Alerter device.Alerter
	Clock   func() time.Time
	Logger  *slog.Logger
}

// Engine is the composition root that assembles all host bridge components
// from configuration and exposes them through a frontend-agnostic API.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	events *EventBus

	backend kv.Store
	closer  io.Closer

	tokens   *tokenstore.Store
	conns    *connections.Store
	api      *accountapi.Client
	tracker  *status.Tracker
	cache    *status.Cache
	enroller *enroll.Enroller

	reconnect  watcher.ReconnectPolicy
	poll       time.Duration
	httpClient *http.Client

	// ctx bounds background work started by the engine itself.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	watchers map[string]*watcher.Connection
	nextID   int
	closed   bool
}

// New creates an Engine from the given configuration. It validates the config,
// opens the storage backend and wires the token store, account service client,
// status cache and enroller.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	reconnect, _ := cfg.ReconnectPolicy()
	poll, _ := cfg.PollInterval()
	timeout, _ := cfg.ServiceTimeout()

	backend, closer, err := openStorage(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	httpClient := deps.HTTPClient
	if httpClient == nil && timeout > 0 {
		httpClient = &http.Client{Timeout: timeout}
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		events:     NewEventBus(),
		backend:    backend,
		closer:     closer,
		reconnect:  reconnect,
		poll:       poll,
		httpClient: httpClient,
		ctx:        ctx,
		cancel:     cancel,
		watchers:   make(map[string]*watcher.Connection),
	}

	tokenOpts := []tokenstore.Option{tokenstore.WithLogger(logger)}
	if cfg.Storage.Migrations != nil {
		tokenOpts = append(tokenOpts, tokenstore.WithMigrations(cfg.Storage.Migrations...))
	}
	e.tokens = tokenstore.New(backend, tokenOpts...)
	e.conns = connections.New(backend)

	endpoints := cfg.Endpoints()
	e.api = accountapi.New(endpoints, cfg.Network.Testnet, httpClient)
	e.api.Headers = cfg.Service.Headers

	e.tracker = status.NewTracker(e.tokens, e.api, logger)
	e.cache = status.NewCache(e.tracker, func(inv status.Invalidation) {
		if errors.Is(inv.Err, accountapi.ErrUnauthorized) {
			e.dropRevoked(inv.Address)
		}
		e.events.Publish(Event{Kind: EventInvalidated, Address: inv.Address, Timestamp: inv.At, Data: inv})
	}, logger)

	wallets := deps.Wallets
	if wallets == nil {
		wallets = enroll.WalletBuilderFunc(func(account.Account) (string, error) { return "", errNoWallets })
	}

	alerter := deps.Alerter
	if alerter == nil {
		alerter = device.LogAlerter{Logger: logger}
	}

	e.enroller = enroll.New(enroll.Config{
		AppURL:      endpoints.App,
		ManifestURL: endpoints.ManifestURL(),
		Tokens:      e.tokens,
		Connections: e.conns,
		API:         e.api,
		Wallets:     wallets,
		Keys:        deps.Keys,
		Device:      deps.Device,
		Alerter:     alerter,
		Refresher:   e.cache,
		Observer: func(tr enroll.Transition) {
			e.events.Publish(Event{Kind: EventEnrollment, Data: tr})
		},
		Clock:  deps.Clock,
		Logger: logger,
	})

	return e, nil
}

func openStorage(cfg StorageConfig, logger *slog.Logger) (kv.Store, io.Closer, error) {
	switch cfg.Backend {
	case StorageFile:
		f, err := kv.OpenFile(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("engine: storage: %w", err)
		}
		return f, nil, nil
	case StorageSQLite:
		s, err := kv.OpenSQLite(kv.SQLiteConfig{Path: cfg.Path, PoolSize: cfg.PoolSize, Logger: logger})
		if err != nil {
			return nil, nil, fmt.Errorf("engine: storage: %w", err)
		}
		return s, s, nil
	default:
		return &kv.Memory{}, nil, nil
	}
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() Config { return e.cfg }

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Tokens returns the session token store.
func (e *Engine) Tokens() *tokenstore.Store { return e.tokens }

// Connections returns the connection record store.
func (e *Engine) Connections() *connections.Store { return e.conns }

// API returns the account service client.
func (e *Engine) API() *accountapi.Client { return e.api }

// Status returns the status cache.
func (e *Engine) Status() *status.Cache { return e.cache }

// Tracker returns the uncached status tracker.
func (e *Engine) Tracker() *status.Tracker { return e.tracker }

// Enroller returns the enroller.
func (e *Engine) Enroller() *enroll.Enroller { return e.enroller }

// Enroll runs one enrollment attempt and, when it succeeds, starts watching
// the account for the lifetime of the engine.
func (e *Engine) Enroll(ctx context.Context, req enroll.Request) enroll.Result {
	res := e.enroller.Enroll(ctx, req)

	e.events.Publish(Event{Kind: EventEnrolled, Address: req.Account.Address, Data: res})

	if res.Type == enroll.ResultSuccess {
		if _, err := e.Watch(e.ctx, req.Account.Address); err != nil {
			e.logger.Warn("engine: failed to start watcher", "account", req.Account.Address, "error", err)
		}
	}

	return res
}

// Watch starts a watcher for the token stored for address, replacing one
// started for an older token. A running watcher for the same token is
// returned as is. Both encodings of an address share one watcher.
func (e *Engine) Watch(ctx context.Context, address string) (*watcher.Connection, error) {
	address, err := account.Normalize(address)
	if err != nil {
		return nil, fmt.Errorf("engine: watch: %w", err)
	}

	token, err := e.tokens.Get(address)
	if err != nil {
		return nil, fmt.Errorf("engine: watch: %w", err)
	}
	if token == "" {
		return nil, ErrNotEnrolled
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New("engine: closed")
	}

	if current, ok := e.watchers[address]; ok {
		if current.Token() == token && running(current) {
			return current, nil
		}
		current.Dispose()
		delete(e.watchers, address)
	}

	conn, err := watcher.Start(ctx, watcher.Config{
		URL:     e.api.RealtimeURL(),
		Token:   token,
		Handler: e.cache.Handler(ctx, address),
		Policy:  e.reconnect,
		OnOpen: func(id string) {
			e.events.Publish(Event{Kind: EventWatcherOpen, Address: address, Data: id})
		},
		HTTPClient: e.httpClient,
		Logger:     e.logger.With("account", address),
	})
	if err != nil {
		return nil, fmt.Errorf("engine: watch: %w", err)
	}

	e.watchers[address] = conn

	return conn, nil
}

// Unwatch disposes the watcher of address, if any.
func (e *Engine) Unwatch(address string) {
	address, err := account.Normalize(address)
	if err != nil {
		return
	}

	e.mu.Lock()
	conn, ok := e.watchers[address]
	delete(e.watchers, address)
	e.mu.Unlock()

	if ok {
		conn.Dispose()
	}
}

// dropRevoked disposes the watcher of address once the service rejected its
// token. A watcher already started for a newer token is left running.
func (e *Engine) dropRevoked(address string) {
	token, err := e.tokens.Get(address)
	if err != nil {
		e.logger.Warn("engine: read token after rejection", "account", address, "error", err)
	}

	e.mu.Lock()
	conn, ok := e.watchers[address]
	if !ok || (err == nil && token != "" && conn.Token() == token) {
		e.mu.Unlock()
		return
	}
	delete(e.watchers, address)
	e.mu.Unlock()

	e.logger.Info("engine: token rejected, stopping watcher", "account", address)
	conn.Dispose()
}

// Poll refreshes the cached status and accounts of address on the
// configured interval until ctx ends.
func (e *Engine) Poll(ctx context.Context, address string) {
	e.cache.Poll(ctx, address, e.poll)
}

// Close disposes every watcher and releases the storage backend.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	watchers := e.watchers
	e.watchers = nil
	e.mu.Unlock()

	e.cancel()

	for _, c := range watchers {
		c.Dispose()
	}

	if e.closer != nil {
		return e.closer.Close()
	}

	return nil
}

func running(c *watcher.Connection) bool {
	if c.Disposed() {
		return false
	}

	select {
	case <-c.Done():
		return false
	default:
		return true
	}
}
