package navigation

import (
	"log/slog"
	"sync"
)

// Directive is the side effect acted on for one navigation event.
type Directive int

const (
	None Directive = iota
	CloseApp
	OpenEnrollment
	OpenURL
)

func (d Directive) String() string {
	switch d {
	case CloseApp:
		return "close-app"
	case OpenEnrollment:
		return "open-enrollment"
	case OpenURL:
		return "open-url"
	default:
		return "none"
	}
}

// Hooks are the host actions the controller triggers. Nil hooks are skipped.
type Hooks struct {
	Close         func()           // Close the embedded content and go back.
	Enroll        func()           // Start enrollment.
	OpenURL       func(string)     // Open an external link (the host applies its allow-list).
	MarkShown     func(ref string) // Mark the entry point identified by ref as shown.
	SetSubscribed func()
	GoBack        func() // Navigate the embedded content's history.
}

// Config configures a Controller.
type Config struct {
	// Enabled turns query parsing on. When false OnNavigation is a no-op.
	Enabled bool
	// RefID identifies the entry point for the mark-shown side effect.
	RefID string
	// DefaultBackPolicy is the initial policy and the value selected by any
	// backPolicy other than "back".
	DefaultBackPolicy BackPolicy
	Hooks             Hooks
	Logger            *slog.Logger
}

// Controller owns the Options of one embedded content load.
type Controller struct {
	mu            sync.Mutex
	opts          Options
	loaded        bool
	enabled       bool
	refID         string
	defaultPolicy BackPolicy
	hooks         Hooks
	logger        *slog.Logger
}

// NewController creates a Controller in its default state.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	opts := DefaultOptions(cfg.DefaultBackPolicy)

	return &Controller{
		opts:          opts,
		enabled:       cfg.Enabled,
		refID:         cfg.RefID,
		defaultPolicy: opts.BackPolicy,
		hooks:         cfg.Hooks,
		logger:        logger,
	}
}

// Options returns the current state.
func (c *Controller) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.opts
}

// Dispatch applies actions and returns the new state.
func (c *Controller) Dispatch(actions ...Action) Options {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts = Fold(c.opts, actions...)

	return c.opts
}

// SetLoaded records whether the content finished its initial load.
func (c *Controller) SetLoaded(loaded bool) {
	c.mu.Lock()
	c.loaded = loaded
	c.mu.Unlock()
}

// Loaded reports whether the content finished its initial load.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loaded
}

// MarkShown triggers the mark-shown side effect when a ref id is set.
func (c *Controller) MarkShown() {
	if c.refID != "" && c.hooks.MarkShown != nil {
		c.hooks.MarkShown(c.refID)
	}
}

// OnNavigation processes the query of rawURL and returns the side effect
// acted on, if any. When a side effect fires, state directives in the same
// URL are skipped.
func (c *Controller) OnNavigation(rawURL string) Directive {
	if !c.enabled {
		return None
	}

	p := ExtractParams(rawURL, c.defaultPolicy)

	if p.MarkAsShown || p.Subscribed {
		c.MarkShown()
	}
	if p.Subscribed && c.hooks.SetSubscribed != nil {
		c.hooks.SetSubscribed()
	}

	switch {
	case p.CloseApp:
		c.logger.Debug("navigation: close app")
		call(c.hooks.Close)
		return CloseApp
	case p.OpenEnrollment:
		c.logger.Debug("navigation: open enrollment")
		call(c.hooks.Enroll)
		return OpenEnrollment
	case p.OpenURL != "":
		c.logger.Debug("navigation: open url", "url", p.OpenURL)
		if c.hooks.OpenURL != nil {
			c.hooks.OpenURL(p.OpenURL)
		}
		return OpenURL
	}

	if actions := p.Actions(); len(actions) > 0 {
		opts := c.Dispatch(actions...)
		c.logger.Debug("navigation: options updated",
			"back_policy", opts.BackPolicy,
			"lock_scroll", opts.LockScroll,
			"show_kav", opts.ShowKeyboardAccessoryView,
		)
	}

	return None
}

// HandleBack reacts to a hardware or gesture back press according to the
// current policy. It always reports the press as handled.
func (c *Controller) HandleBack() bool {
	c.mu.Lock()
	policy := c.opts.BackPolicy
	loaded := c.loaded
	c.mu.Unlock()

	switch policy {
	case Lock:
	case Back:
		call(c.hooks.GoBack)
	case Close:
		// Closing before the first load races with fast back gestures.
		if loaded {
			call(c.hooks.Close)
		}
	}

	return true
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
