package navigation

// BackPolicy decides what a hardware or gesture back press does.
type BackPolicy string

const (
	// Back navigates the embedded content's history.
	Back BackPolicy = "back"
	// Close closes the embedded content once it has loaded.
	Close BackPolicy = "close"
	// Lock swallows the back press.
	Lock BackPolicy = "lock"
)

// DefaultBackPolicy is used by every entry point unless configured otherwise.
const DefaultBackPolicy = Close

// Valid reports whether p is a known policy.
func (p BackPolicy) Valid() bool {
	switch p {
	case Back, Close, Lock:
		return true
	default:
		return false
	}
}

// Options is the navigation state consumed by the host chrome.
type Options struct {
	BackPolicy                BackPolicy `json:"backPolicy"`
	LockScroll                bool       `json:"lockScroll"`
	ShowKeyboardAccessoryView bool       `json:"showKeyboardAccessoryView"`
}

// DefaultOptions returns the initial state for the given back policy. An
// invalid policy falls back to DefaultBackPolicy.
func DefaultOptions(policy BackPolicy) Options {
	if !policy.Valid() {
		policy = DefaultBackPolicy
	}

	return Options{BackPolicy: policy}
}

// Action is a state directive. The set of actions is closed.
type Action interface {
	apply(Options) Options
}

// SetBackPolicy replaces the back policy. Unknown policies are ignored.
type SetBackPolicy struct{ Policy BackPolicy }

func (a SetBackPolicy) apply(o Options) Options {
	if a.Policy.Valid() {
		o.BackPolicy = a.Policy
	}
	return o
}

// SetShowKeyboardAccessory toggles the keyboard accessory view.
type SetShowKeyboardAccessory struct{ Show bool }

func (a SetShowKeyboardAccessory) apply(o Options) Options {
	o.ShowKeyboardAccessoryView = a.Show
	return o
}

// SetLockScroll toggles scroll locking.
type SetLockScroll struct{ Lock bool }

func (a SetLockScroll) apply(o Options) Options {
	o.LockScroll = a.Lock
	return o
}

// Reduce applies a to o. A nil action leaves o unchanged.
func Reduce(o Options, a Action) Options {
	if a == nil {
		return o
	}

	return a.apply(o)
}

// Fold reduces actions in order.
func Fold(o Options, actions ...Action) Options {
	for _, a := range actions {
		o = Reduce(o, a)
	}

	return o
}
