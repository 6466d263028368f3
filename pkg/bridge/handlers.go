package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/germanamz/hostbridge/pkg/inject"
	"github.com/germanamz/hostbridge/pkg/navigation"
)

// handleHostVerb handles the always-on verbs. It reports whether name was
// one of them.
func (r *Router) handleHostVerb(msg message, p payload) bool {
	switch p.Name {
	case "openUrl":
		var args struct {
			URL string `json:"url"`
		}
		if err := decodeArgs(p.Args, &args); err != nil || args.URL == "" {
			r.logger.Warn("bridge: invalid openUrl args")
			return true
		}
		if r.cfg.Opener == nil || !r.cfg.Opener.OpenURL(args.URL) {
			r.logger.Warn("bridge: refused to open url", "url", args.URL)
		}
	case "closeApp":
		callHook(r.cfg.Hooks.Close)
	case "openEnrollment":
		var args struct {
			Payload string `json:"payload"`
		}
		if len(p.Args) > 0 && !isNull(p.Args) {
			if err := json.Unmarshal(p.Args, &args); err != nil {
				r.logger.Warn("bridge: invalid openEnrollment args", "error", err)
			}
		}
		if r.cfg.Hooks.Enroll != nil {
			r.cfg.Hooks.Enroll(args.Payload)
		}
	case "showKeyboardAccessoryView":
		var args struct {
			Show *bool `json:"show"`
		}
		if err := decodeArgs(p.Args, &args); err != nil || args.Show == nil {
			r.logger.Warn("bridge: invalid showKeyboardAccessoryView args")
			return true
		}
		r.dispatchNavigation(navigation.SetShowKeyboardAccessory{Show: *args.Show})
	case "lockScroll":
		var args struct {
			Lock *bool `json:"lock"`
		}
		if err := decodeArgs(p.Args, &args); err != nil || args.Lock == nil {
			r.logger.Warn("bridge: invalid lockScroll args")
			return true
		}
		r.dispatchNavigation(navigation.SetLockScroll{Lock: *args.Lock})
	case "backPolicy":
		var args struct {
			BackPolicy navigation.BackPolicy `json:"backPolicy"`
		}
		if err := decodeArgs(p.Args, &args); err != nil || !args.BackPolicy.Valid() {
			r.logger.Warn("bridge: invalid backPolicy args")
			return true
		}
		r.dispatchNavigation(navigation.SetBackPolicy{Policy: args.BackPolicy})
	case "subscribed":
		callHook(r.cfg.Hooks.Subscribed)
	case "navigate":
		var args struct {
			RouteName string          `json:"routeName"`
			Params    json.RawMessage `json:"params"`
		}
		if err := decodeArgs(p.Args, &args); err != nil || args.RouteName == "" {
			r.logger.Warn("bridge: invalid navigate args")
			return true
		}
		if r.cfg.Hooks.Navigate != nil {
			r.cfg.Hooks.Navigate(args.RouteName, args.Params)
		}
	case "localStorageStatus":
		r.handleLocalStorageStatus(msg.Data)
	default:
		return false
	}

	return true
}

func (r *Router) dispatchNavigation(a navigation.Action) {
	if r.cfg.Navigation == nil {
		r.logger.Debug("bridge: navigation options ignored, no controller")
		return
	}

	r.cfg.Navigation.Dispatch(a)
}

func (r *Router) handleLocalStorageStatus(data json.RawMessage) {
	var st LocalStorageStatus
	if err := json.Unmarshal(data, &st); err != nil {
		r.logger.Warn("bridge: failed to update local storage status", "error", err)
		return
	}

	if r.cfg.Hooks.LocalStorageStatus != nil {
		r.cfg.Hooks.LocalStorageStatus(st)
	}

	if st.ID == "" {
		return
	}

	r.mu.Lock()
	ch, ok := r.probes[st.ID]
	delete(r.probes, st.ID)
	r.mu.Unlock()

	if ok {
		ch <- st
	}
}

func (r *Router) applyButton(actions ...ButtonAction) {
	r.mu.Lock()
	for _, a := range actions {
		r.button = ReduceMainButton(r.button, a)
	}
	b := r.button
	r.mu.Unlock()

	if r.cfg.Hooks.MainButtonChanged != nil {
		r.cfg.Hooks.MainButtonChanged(b)
	}
}

func (r *Router) handleMainButton(verb string, args json.RawMessage) {
	if op, ok := buttonVerbs[verb]; ok {
		r.applyButton(ButtonAction{Op: op})
		return
	}

	if verb != "setParams" {
		r.logger.Warn("bridge: invalid main button action type", "action", verb)
		return
	}

	var params map[string]json.RawMessage
	if err := decodeArgs(args, &params); err != nil {
		r.logger.Warn("bridge: invalid main button params", "error", err)
		return
	}

	actions, skipped := buttonParamActions(params)
	for _, key := range skipped {
		r.logger.Warn("bridge: skipped main button param", "key", key)
	}

	if len(actions) > 0 {
		r.applyButton(actions...)
	}
}

func (r *Router) handleStatusBar(verb string, args json.RawMessage) {
	if verb != "set" {
		r.logger.Warn("bridge: invalid status bar action", "action", verb)
		return
	}

	var params map[string]json.RawMessage
	if err := decodeArgs(args, &params); err != nil {
		r.logger.Warn("bridge: invalid status bar params", "error", err)
		return
	}

	sb := r.cfg.StatusBar

	for _, key := range sortedKeys(params) {
		var v string
		if isNull(params[key]) || json.Unmarshal(params[key], &v) != nil {
			r.logger.Warn("bridge: skipped status bar param", "key", key)
			continue
		}

		switch key {
		case "style":
			if sb != nil {
				sb.SetStyle(v)
			}
		case "backgroundColor":
			if sb != nil {
				sb.SetBackgroundColor(v)
			}
		default:
			r.logger.Warn("bridge: skipped status bar param", "key", key)
		}
	}
}

var toastTypes = map[string]bool{"warning": true, "default": true, "error": true, "success": true}

var toastDurations = map[int64]time.Duration{
	2000: ToastShort,
	3500: ToastDefault,
	6000: ToastLong,
}

// parseToast validates toast arguments key by key. The message and type
// keys are required; invalid optional keys are skipped.
func (r *Router) parseToast(args json.RawMessage) (Toast, bool) {
	var params map[string]json.RawMessage
	if err := decodeArgs(args, &params); err != nil {
		return Toast{}, false
	}

	t := Toast{Duration: ToastDefault}
	var hasMessage, hasType bool

	for _, key := range sortedKeys(params) {
		raw := params[key]

		switch key {
		case "message":
			hasMessage = !isNull(raw) && json.Unmarshal(raw, &t.Message) == nil
		case "type":
			hasType = !isNull(raw) && json.Unmarshal(raw, &t.Type) == nil && toastTypes[t.Type]
		case "duration":
			var ms int64
			if isNull(raw) || json.Unmarshal(raw, &ms) != nil {
				r.logger.Warn("bridge: skipped toast param", "key", key)
				continue
			}
			d, ok := toastDurations[ms]
			if !ok {
				r.logger.Warn("bridge: skipped toast param", "key", key)
				continue
			}
			t.Duration = d
		case "marginBottom":
			var mb float64
			if isNull(raw) || json.Unmarshal(raw, &mb) != nil {
				r.logger.Warn("bridge: skipped toast param", "key", key)
				continue
			}
			t.MarginBottom = &mb
		default:
			r.logger.Warn("bridge: skipped toast param", "key", key)
		}
	}

	return t, hasMessage && hasType
}

func (r *Router) handleToaster(verb string, args json.RawMessage) {
	tt := r.cfg.Toaster
	if tt == nil {
		r.logger.Debug("bridge: toaster not attached")
		return
	}

	switch verb {
	case "clear":
		tt.Clear()
		return
	case "pop":
		tt.Pop()
		return
	case "show", "push":
	default:
		r.logger.Warn("bridge: invalid toaster action", "action", verb)
		return
	}

	toast, ok := r.parseToast(args)
	if !ok {
		r.logger.Warn("bridge: invalid toast", "action", verb)
		return
	}

	if verb == "show" {
		tt.Show(toast)
	} else {
		tt.Push(toast)
	}
}

func (r *Router) handleEmitter(args json.RawMessage) {
	var ev struct {
		Event string          `json:"event"`
		Args  json.RawMessage `json:"args"`
	}
	if len(args) > 0 && !isNull(args) {
		if err := json.Unmarshal(args, &ev); err != nil {
			r.logger.Warn("bridge: invalid emitter event", "error", err)
			return
		}
	}

	if ev.Event == "" || ev.Event == "loaded" {
		r.mu.Lock()
		r.loaded = true
		r.mu.Unlock()

		if r.cfg.Navigation != nil {
			r.cfg.Navigation.SetLoaded(true)
		}
		return
	}

	if r.cfg.Hooks.Emit != nil {
		r.cfg.Hooks.Emit(ev.Event, ev.Args)
	}
}

func (r *Router) handleAuth(method string) {
	auth := r.cfg.Auth

	switch method {
	case "getLastAuthTime":
		var t int64
		if auth != nil {
			t = auth.LastAuthTime()
		}
		r.inject(inject.DispatchLastAuthTime(t))
	case "authenticate":
		r.async(func(ctx context.Context) {
			res := inject.AuthResponse{}
			if auth != nil {
				var err error
				if auth.TimedOut() {
					err = auth.Authenticate(ctx)
				}
				if err != nil {
					r.logger.Warn("bridge: failed to authenticate", "error", err)
				} else {
					t := auth.LastAuthTime()
					res = inject.AuthResponse{IsAuthenticated: true, LastAuthTime: &t}
				}
			}
			r.inject(inject.DispatchAuth(res))
		})
	case "lockAppWithAuth":
		r.async(func(ctx context.Context) {
			res := inject.LockResponse{}
			if auth != nil {
				secured, err := auth.SetupMandatoryAuth(ctx)
				if err != nil {
					r.logger.Warn("bridge: failed to set up mandatory auth", "error", err)
				}
				t := auth.LastAuthTime()
				res = inject.LockResponse{IsSecured: err == nil && secured, LastAuthTime: &t}
			}
			r.inject(inject.DispatchLockAppWithAuth(res))
		})
	default:
		r.logger.Warn("bridge: invalid auth method", "method", method)
	}
}

func (r *Router) handleWallet(method string, args json.RawMessage) {
	w := r.cfg.Wallet
	if w == nil {
		r.logger.Warn("bridge: wallet not attached", "method", method)
		r.inject(inject.DispatchWallet(false))
		return
	}

	reply := func(result any) { r.inject(inject.DispatchWallet(result)) }

	switch method {
	case "isEnabled":
		r.async(func(ctx context.Context) {
			ok, err := w.IsEnabled(ctx)
			if err != nil {
				r.logger.Warn("bridge: failed to check if wallet is enabled", "error", err)
				ok = false
			}
			reply(ok)
		})
	case "checkIfCardIsAlreadyAdded":
		var a struct {
			Suffix string `json:"primaryAccountNumberSuffix"`
		}
		if decodeArgs(args, &a) != nil || a.Suffix == "" {
			r.logger.Warn("bridge: invalid primaryAccountNumberSuffix")
			reply(false)
			return
		}
		r.async(func(ctx context.Context) {
			ok, err := w.CheckIfCardIsAlreadyAdded(ctx, a.Suffix)
			if err != nil {
				r.logger.Warn("bridge: failed to check if card is already added", "error", err)
				ok = false
			}
			reply(ok)
		})
	case "checkIfCardsAreAdded":
		var a struct {
			CardIDs []string `json:"cardIds"`
		}
		if decodeArgs(args, &a) != nil || a.CardIDs == nil {
			r.logger.Warn("bridge: invalid cardIds")
			reply(false)
			return
		}
		r.async(func(ctx context.Context) {
			res, err := w.CheckIfCardsAreAdded(ctx, a.CardIDs)
			if err != nil {
				r.logger.Warn("bridge: failed to check if cards are added", "error", err)
				reply(false)
				return
			}
			reply(res)
		})
	case "canAddCard":
		var a struct {
			CardID string `json:"cardId"`
		}
		if decodeArgs(args, &a) != nil || a.CardID == "" {
			r.logger.Warn("bridge: invalid cardId")
			reply(false)
			return
		}
		r.async(func(ctx context.Context) {
			ok, err := w.CanAddCard(ctx, a.CardID)
			if err != nil {
				// Let the native flow surface the actual reason.
				r.logger.Warn("bridge: failed to check if card can be added", "error", err)
				ok = true
			}
			reply(ok)
		})
	case "addCardToWallet":
		var req AddCardRequest
		if decodeArgs(args, &req) != nil || !req.valid() {
			r.logger.Warn("bridge: invalid addCardToWallet request")
			reply(false)
			return
		}
		token := r.sessionToken()
		if token == "" {
			r.logger.Warn("bridge: user token not found")
			reply(false)
			return
		}
		r.async(func(ctx context.Context) {
			ok, err := w.AddCardToWallet(ctx, req, token, r.cfg.Testnet)
			if err != nil {
				r.logger.Warn("bridge: failed to add card to wallet", "error", err)
				ok = false
			}
			reply(ok)
		})
	default:
		r.logger.Warn("bridge: invalid wallet method", "method", method)
	}
}

func (r *Router) sessionToken() string {
	if r.cfg.Tokens == nil || r.cfg.Address == "" {
		return ""
	}

	token, err := r.cfg.Tokens.Get(r.cfg.Address)
	if err != nil {
		r.logger.Warn("bridge: failed to read session token", "error", err)
		return ""
	}

	return token
}

func (r *Router) handleSupport(name string, args json.RawMessage) {
	s := r.cfg.Support
	if s == nil {
		r.logger.Debug("bridge: support not attached")
		return
	}

	if name == "showIntercom" {
		s.Show()
		return
	}

	var a struct {
		Text string `json:"text"`
	}
	if decodeArgs(args, &a) != nil || a.Text == "" {
		r.logger.Warn("bridge: invalid support message")
		return
	}

	s.ShowWithMessage(a.Text)
}

func callHook(fn func()) {
	if fn != nil {
		fn()
	}
}
