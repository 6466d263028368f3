package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/bridge"
	"github.com/germanamz/hostbridge/pkg/enroll"
	"github.com/germanamz/hostbridge/pkg/inject"
	"github.com/germanamz/hostbridge/pkg/navigation"
)

// ContentEvent is an event emitted by embedded content through the emitter
// capability.
type ContentEvent struct {
	Name string
	Args json.RawMessage
}

// SessionOptions configures one embedded content load. Injector is
// required; every other host capability is optional.
type SessionOptions struct {
	Account  account.Account
	Injector bridge.Injector
	// RefID identifies the entry point for the mark-shown side effect.
	RefID string
	// Extra is appended to the injected source after the capabilities.
	Extra string
	// Methods serves generic client calls; nil disables them.
	Methods   *inject.Engine
	AuthState inject.AuthState

	Auth          bridge.Authenticator
	Wallet        bridge.Wallet
	Toaster       bridge.Toaster
	StatusBar     bridge.StatusBar
	Support       bridge.Support
	InitialButton bridge.MainButton

	// Source returns the origin of the loaded content.
	Source func() string
	// Open opens an external link that passed the allow-list.
	Open     func(rawURL string)
	Close    func()
	GoBack   func()
	Navigate func(route string, params json.RawMessage)
}

// WebSession is the bridge state of one embedded content load: the injected
// source, the router handling its messages and the navigation controller.
type WebSession struct {
	id      string
	engine  *Engine
	account account.Account
	source  string
	router  *bridge.Router
	nav     *navigation.Controller

	wg sync.WaitGroup
}

// NewWebSession assembles the components for one content load.
func (e *Engine) NewWebSession(opts SessionOptions) (*WebSession, error) {
	if opts.Injector == nil {
		return nil, errors.New("engine: web session: injector is required")
	}

	e.mu.Lock()
	e.nextID++
	id := fmt.Sprintf("web-%d", e.nextID)
	e.mu.Unlock()

	s := &WebSession{id: id, engine: e, account: opts.Account}
	logger := e.logger.With("session", id)
	addr := opts.Account.Address

	trusted := e.cfg.Bridge.TrustedOrigin
	if trusted == "" {
		trusted = e.cfg.Endpoints().App
	}
	opener := &bridge.SafeOpener{
		Domains:       e.cfg.Bridge.SafeDomains,
		TrustedOrigin: trusted,
		Source:        opts.Source,
		Open:          opts.Open,
	}

	s.nav = navigation.NewController(navigation.Config{
		Enabled:           e.cfg.Navigation.QueryAPI || e.cfg.Bridge.API.QueryAPI,
		RefID:             opts.RefID,
		DefaultBackPolicy: e.cfg.BackPolicy(),
		Hooks: navigation.Hooks{
			Close:  opts.Close,
			Enroll: func() { s.enroll("") },
			OpenURL: func(u string) {
				if !opener.OpenURL(u) {
					logger.Warn("engine: refused to open url", "url", u)
				}
			},
			MarkShown: func(ref string) {
				e.events.Publish(Event{Kind: EventMarkShown, Address: addr, SessionID: id, Data: ref})
			},
			SetSubscribed: func() { s.subscribed() },
			GoBack:        opts.GoBack,
		},
		Logger: logger,
	})

	s.router = bridge.NewRouter(bridge.Config{
		API:        e.cfg.Bridge.API,
		Engine:     opts.Methods,
		Injector:   opts.Injector,
		Navigation: s.nav,
		Opener:     opener,
		Auth:       opts.Auth,
		Wallet:     opts.Wallet,
		Tokens:     e.tokens,
		Address:    addr,
		Testnet:    e.cfg.Network.Testnet,
		Toaster:    opts.Toaster,
		StatusBar:  opts.StatusBar,
		Support:    opts.Support,

		InitialButton: opts.InitialButton,
		Hooks: bridge.Hooks{
			Close:      opts.Close,
			Enroll:     s.enroll,
			Navigate:   opts.Navigate,
			Subscribed: s.subscribed,
			Emit: func(event string, args json.RawMessage) {
				e.events.Publish(Event{Kind: EventContent, Address: addr, SessionID: id, Data: ContentEvent{Name: event, Args: args}})
			},
		},
		Logger: logger,
	})

	s.source = inject.Source(inject.SourceOptions{
		API:      e.cfg.Bridge.API,
		SafeArea: e.cfg.Bridge.SafeArea,
		Auth:     opts.AuthState,
		Extra:    opts.Extra,
	})

	return s, nil
}

// ID returns the session identifier.
func (s *WebSession) ID() string { return s.id }

// Source returns the script injected before the content loads.
func (s *WebSession) Source() string { return s.source }

// Router returns the bridge router.
func (s *WebSession) Router() *bridge.Router { return s.router }

// Navigation returns the navigation controller.
func (s *WebSession) Navigation() *navigation.Controller { return s.nav }

// Handle processes one inbound bridge message.
func (s *WebSession) Handle(raw string) { s.router.Handle(raw) }

// Navigate feeds a navigation event to the controller and publishes the
// side-effecting directive it acted on, if any.
func (s *WebSession) Navigate(rawURL string) navigation.Directive {
	d := s.nav.OnNavigation(rawURL)
	if d != navigation.None {
		s.engine.events.Publish(Event{Kind: EventNavigation, Address: s.account.Address, SessionID: s.id, Data: d})
	}

	return d
}

// Back handles a hardware back press and reports whether it was consumed.
func (s *WebSession) Back() bool { return s.nav.HandleBack() }

// Close stops the router and waits for enrollments it started.
func (s *WebSession) Close() {
	s.router.Close()
	s.wg.Wait()
}

// enroll starts enrollment in the background. A non-empty payload is an
// invite id and forces a fresh handshake.
func (s *WebSession) enroll(payload string) {
	if s.account.Address == "" {
		s.engine.logger.Warn("engine: enrollment requested without an account", "session", s.id)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.engine.Enroll(s.engine.ctx, enroll.Request{Account: s.account, InviteID: payload})
	}()
}

func (s *WebSession) subscribed() {
	s.engine.events.Publish(Event{Kind: EventSubscribed, Address: s.account.Address, SessionID: s.id})
}
