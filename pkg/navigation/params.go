package navigation

import (
	"net/url"
)

// Params are the recognized query keys of one navigation URL. Pointer
// fields are nil when the key is absent.
type Params struct {
	CloseApp       bool
	OpenURL        string
	BackPolicy     *BackPolicy
	OpenEnrollment bool
	ShowKAV        *bool
	LockScroll     *bool
	MarkAsShown    bool
	Subscribed     bool
}

// ExtractParams parses the query of rawURL. backPolicy=back selects Back;
// any other present value selects defaultPolicy. Unparseable URLs yield
// empty Params.
func ExtractParams(rawURL string, defaultPolicy BackPolicy) Params {
	var p Params

	u, err := url.Parse(rawURL)
	if err != nil {
		return p
	}

	q := u.Query()

	p.CloseApp = q.Get("closeApp") == "true"
	p.OpenURL = q.Get("openUrl")
	p.OpenEnrollment = q.Get("openEnrollment") == "true"
	p.MarkAsShown = q.Get("markAsShown") == "true"
	p.Subscribed = q.Get("subscribed") == "true"

	if q.Has("backPolicy") {
		policy := defaultPolicy
		if q.Get("backPolicy") == string(Back) {
			policy = Back
		}
		p.BackPolicy = &policy
	}

	p.ShowKAV = boolParam(q, "showKAV")
	p.LockScroll = boolParam(q, "lockScroll")

	return p
}

func boolParam(q url.Values, key string) *bool {
	switch q.Get(key) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}

// Actions returns the state directives carried by p, in a fixed order.
func (p Params) Actions() []Action {
	var actions []Action

	if p.BackPolicy != nil {
		actions = append(actions, SetBackPolicy{Policy: *p.BackPolicy})
	}
	if p.ShowKAV != nil {
		actions = append(actions, SetShowKeyboardAccessory{Show: *p.ShowKAV})
	}
	if p.LockScroll != nil {
		actions = append(actions, SetLockScroll{Lock: *p.LockScroll})
	}

	return actions
}
