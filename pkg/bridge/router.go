package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/germanamz/hostbridge/pkg/inject"
	"github.com/germanamz/hostbridge/pkg/navigation"
)

// ErrDuplicateCall is logged when content reuses an id that is still in
// flight.
var ErrDuplicateCall = errors.New("bridge: duplicate call id")

// ErrClosed is returned by operations on a closed router.
var ErrClosed = errors.New("bridge: router closed")

// Config configures a Router. Only Injector is required; every missing
// collaborator disables the behaviour that needs it.
type Config struct {
	API        inject.API
	Engine     *inject.Engine
	Injector   Injector
	Navigation *navigation.Controller
	Opener     *SafeOpener

	Auth      Authenticator
	Wallet    Wallet
	Tokens    Tokens
	Address   string // Account used to read the session token for wallet calls.
	Testnet   bool
	Toaster   Toaster
	StatusBar StatusBar
	Support   Support

	// InitialButton is the main button state before content changes it.
	InitialButton MainButton
	Hooks         Hooks
	Logger        *slog.Logger
}

// message is the outer shape of every inbound payload.
type message struct {
	ID   json.RawMessage `json:"id"`
	Data json.RawMessage `json:"data"`
}

type payload struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Router handles the bridge traffic of one embedded content load.
type Router struct {
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	button  MainButton
	loaded  bool
	closed  bool
	pending map[string]context.CancelFunc
	probes  map[string]chan LocalStorageStatus
}

// NewRouter creates a Router.
func NewRouter(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Router{
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		button:  cfg.InitialButton,
		pending: make(map[string]context.CancelFunc),
		probes:  make(map[string]chan LocalStorageStatus),
	}
}

// MainButton returns the current main button state.
func (r *Router) MainButton() MainButton {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.button
}

// Loaded reports whether content signalled that it finished loading.
func (r *Router) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loaded
}

// Reset hides the main button and clears the loaded flag, as after the
// content process terminated.
func (r *Router) Reset() {
	r.mu.Lock()
	r.loaded = false
	r.mu.Unlock()

	r.applyButton(ButtonAction{Op: ButtonHide})

	if r.cfg.Navigation != nil {
		r.cfg.Navigation.SetLoaded(false)
	}
}

// ClickMainButton is called when the user presses the main button.
func (r *Router) ClickMainButton() {
	if r.MainButton().HasOnClick {
		r.inject(inject.DispatchMainButtonClick())
	}
}

// Pending returns the number of generic calls in flight.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// Wait blocks until every asynchronous handler returned.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Close cancels every in-flight call and stops dispatching responses.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for id, cancel := range r.pending {
		cancel()
		delete(r.pending, id)
	}
	r.mu.Unlock()

	r.cancel()
}

// Handle processes one inbound message. It never panics.
func (r *Router) Handle(raw string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("bridge: handler panicked", "panic", rec)
		}
	}()

	var msg message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.logger.Warn("bridge: malformed message", "error", err)
		return
	}

	var p payload
	if len(msg.Data) == 0 || isNull(msg.Data) {
		r.logger.Warn("bridge: message without data")
		return
	}
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		r.logger.Warn("bridge: malformed data", "error", err)
		return
	}
	if p.Name == "" {
		r.logger.Warn("bridge: message without name")
		return
	}

	if r.handleStructured(msg, p) {
		return
	}

	r.handleCall(msg, p)
}

func (r *Router) handleStructured(msg message, p payload) bool {
	if r.handleHostVerb(msg, p) {
		return true
	}

	api := r.cfg.API
	name := p.Name

	switch {
	case api.MainButton && strings.HasPrefix(name, "main-button."):
		r.handleMainButton(strings.TrimPrefix(name, "main-button."), p.Args)
	case api.StatusBar && strings.HasPrefix(name, "status-bar."):
		r.handleStatusBar(strings.TrimPrefix(name, "status-bar."), p.Args)
	case api.Toaster && strings.HasPrefix(name, "toaster."):
		r.handleToaster(strings.TrimPrefix(name, "toaster."), p.Args)
	case api.Emitter && strings.HasPrefix(name, "dapp-emitter"):
		r.handleEmitter(p.Args)
	case api.Auth && strings.HasPrefix(name, "auth."):
		r.handleAuth(strings.TrimPrefix(name, "auth."))
	case api.Wallet && strings.HasPrefix(name, "wallet."):
		r.handleWallet(strings.TrimPrefix(name, "wallet."), p.Args)
	case api.Support && (name == "showIntercom" || name == "showIntercomWithMessage"):
		r.handleSupport(name, p.Args)
	default:
		return false
	}

	return true
}

// handleCall forwards a generic envelope to the engine.
func (r *Router) handleCall(msg message, p payload) {
	engine := r.cfg.Engine
	if engine == nil {
		r.logger.Warn("bridge: unrecognized message", "name", p.Name)
		return
	}

	id, ok := callID(msg.ID)
	if !ok {
		r.logger.Warn("bridge: invalid operation id", "name", p.Name)
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if _, busy := r.pending[id]; busy {
		r.mu.Unlock()
		r.logger.Warn("bridge: call refused", "id", id, "error", ErrDuplicateCall)
		return
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.pending[id] = cancel
	r.mu.Unlock()

	respond := responderFor(engine.Name())

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		res := engine.Execute(ctx, msg.Data)

		r.mu.Lock()
		_, owned := r.pending[id]
		delete(r.pending, id)
		r.mu.Unlock()

		if !owned {
			return
		}

		if !res.IsOK() {
			r.logger.Warn("bridge: engine call failed", "engine", engine.Name(), "id", id, "error", res.Message)
		}

		r.inject(respond(msg.ID, res))
	}()
}

// ProbeLocalStorage asks the content for its local storage status and waits
// for the answer.
func (r *Router) ProbeLocalStorage(ctx context.Context) (LocalStorageStatus, error) {
	id := newProbeID()
	ch := make(chan LocalStorageStatus, 1)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return LocalStorageStatus{}, ErrClosed
	}
	r.probes[id] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.probes, id)
		r.mu.Unlock()
	}()

	r.inject(inject.LocalStorageProbe(id))

	select {
	case st := <-ch:
		return st, nil
	case <-ctx.Done():
		return LocalStorageStatus{}, ctx.Err()
	case <-r.ctx.Done():
		return LocalStorageStatus{}, ErrClosed
	}
}

func (r *Router) inject(script string) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()

	if closed || r.cfg.Injector == nil {
		return
	}

	r.cfg.Injector.InjectJavaScript(script)
}

// async runs fn on its own goroutine bound to the router lifetime.
func (r *Router) async(fn func(ctx context.Context)) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("bridge: async handler panicked", "panic", rec)
			}
		}()

		fn(r.ctx)
	}()
}

// callID validates an envelope id and returns its canonical key. Ids are
// JSON strings or numbers.
func callID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}

	switch v.(type) {
	case string, float64:
		return string(raw), true
	default:
		return "", false
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// decodeArgs decodes args into dst, treating missing args as an error.
func decodeArgs(args json.RawMessage, dst any) error {
	if len(args) == 0 || isNull(args) {
		return errors.New("missing args")
	}

	return json.Unmarshal(args, dst)
}
