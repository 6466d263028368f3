package inject

import (
	"encoding/json"
	"strings"
)

// Namespace is the bridge namespace guarded against shadowing.
const Namespace = "tonhub"

// API selects the capabilities exposed to embedded content.
type API struct {
	MainButton bool `yaml:"main_button"`
	StatusBar  bool `yaml:"status_bar"`
	Toaster    bool `yaml:"toaster"`
	Emitter    bool `yaml:"emitter"`
	Auth       bool `yaml:"auth"`
	Wallet     bool `yaml:"wallet"`
	DappClient bool `yaml:"dapp_client"`
	Support    bool `yaml:"support"`
	QueryAPI   bool `yaml:"query_api"`
}

// Insets are the safe area insets reported to content.
type Insets struct {
	Top    int `json:"top" yaml:"top"`
	Bottom int `json:"bottom" yaml:"bottom"`
	Left   int `json:"left" yaml:"left"`
	Right  int `json:"right" yaml:"right"`
}

// AuthState is the auth snapshot exposed when the auth capability is on.
type AuthState struct {
	LastAuthTime   int64 `json:"lastAuthTime"`
	IsLockedByAuth bool  `json:"isLockedByAuth"`
}

// SourceOptions configures Source.
type SourceOptions struct {
	API      API
	SafeArea Insets
	Auth     AuthState
	Extra    string // Caller supplied fragment, appended after the capabilities.
}

// post is shared by every fragment that talks to the host.
const post = `const post = (name, args, id) => window.ReactNativeWebView.postMessage(JSON.stringify({ id, data: { name, args } }));`

const mainButtonFragment = `(() => {
  ` + post + `
  let onClick = null;
  let clickId = 0;
  window['main-button'] = {
    show: () => post('main-button.show'),
    hide: () => post('main-button.hide'),
    enable: () => post('main-button.enable'),
    disable: () => post('main-button.disable'),
    showProgress: () => post('main-button.showProgress'),
    hideProgress: () => post('main-button.hideProgress'),
    setParams: (params) => post('main-button.setParams', params),
    onClick: (cb) => { onClick = cb; post('main-button.onClick', undefined, ++clickId); },
    offClick: () => { onClick = null; post('main-button.offClick'); },
    __response: () => { if (onClick) { onClick(); } },
  };
})();
`

const statusBarFragment = `(() => {
  ` + post + `
  window['tonhub-status-bar'] = {
    insets: %s,
    set: (params) => post('status-bar.set', params),
    setStyle: (style) => post('status-bar.set', { style }),
    setBackgroundColor: (backgroundColor) => post('status-bar.set', { backgroundColor }),
  };
})();
`

const toasterFragment = `(() => {
  ` + post + `
  window['toaster'] = {
    show: (props) => post('toaster.show', props),
    push: (props) => post('toaster.push', props),
    pop: () => post('toaster.pop'),
    clear: () => post('toaster.clear'),
  };
})();
`

const emitterFragment = `(() => {
  ` + post + `
  window['dapp-emitter'] = {
    emit: (event, args) => post('dapp-emitter', { event, args }),
    loaded: () => post('dapp-emitter', { event: 'loaded' }),
  };
})();
`

const authFragment = `(() => {
  ` + post + `
  const waiting = { getLastAuthTime: [], authenticate: [], lockAppWithAuth: [] };
  const call = (method) => new Promise((resolve) => { waiting[method].push(resolve); post('auth.' + method); });
  const state = %s;
  window['tonhub-auth'] = {
    get lastAuthTime() { return state.lastAuthTime; },
    get isLockedByAuth() { return state.isLockedByAuth; },
    getLastAuthTime: () => call('getLastAuthTime'),
    authenticate: () => call('authenticate'),
    lockAppWithAuth: () => call('lockAppWithAuth'),
    __response: (method, payload) => {
      if (payload && typeof payload.lastAuthTime === 'number') { state.lastAuthTime = payload.lastAuthTime; }
      if (method === 'lockAppWithAuth' && payload && payload.isSecured) { state.isLockedByAuth = true; }
      const resolve = waiting[method] && waiting[method].shift();
      if (resolve) { resolve(payload); }
    },
  };
})();
`

const walletFragment = `(() => {
  ` + post + `
  const waiting = [];
  const call = (method, args) => new Promise((resolve) => { waiting.push(resolve); post('wallet.' + method, args); });
  window['tonhub-wallet'] = {
    isEnabled: () => call('isEnabled'),
    checkIfCardIsAlreadyAdded: (primaryAccountNumberSuffix) => call('checkIfCardIsAlreadyAdded', { primaryAccountNumberSuffix }),
    checkIfCardsAreAdded: (cardIds) => call('checkIfCardsAreAdded', { cardIds }),
    canAddCard: (cardId) => call('canAddCard', { cardId }),
    addCardToWallet: (request) => call('addCardToWallet', request),
    __response: (payload) => { const resolve = waiting.shift(); if (resolve) { resolve(payload.result); } },
  };
})();
`

const clientFragment = `(() => {
  ` + post + `
  const pending = new Map();
  let nextId = 0;
  const settle = (id, ok, value) => {
    const p = pending.get(id);
    if (!p) { return; }
    pending.delete(id);
    ok ? p.resolve(value) : p.reject(value);
  };
  window['tonhub-client'] = {
    call: (name, args) => new Promise((resolve, reject) => {
      const id = ++nextId;
      pending.set(id, { resolve, reject });
      post(name, args, id);
    }),
    __response: (ev) => {
      if (ev.data.type === 'ok') { settle(ev.id, true, ev.data.data); } else { settle(ev.id, false, new Error(ev.data.message)); }
    },
    __legacyResponse: (ev) => {
      if (ev.data.type === 'success') { settle(ev.id, true, ev.data.result); } else { settle(ev.id, false, ev.data.error); }
    },
  };
})();
`

const supportFragment = `(() => {
  ` + post + `
  window['tonhub-support'] = {
    show: () => post('showIntercom'),
    showWithMessage: (text) => post('showIntercomWithMessage', { text }),
  };
})();
`

const guardFragment = `(() => {
  if (!window.` + Namespace + `) {
    window['` + Namespace + `'] = (() => {
      const obj = {};
      Object.freeze(obj);
      return obj;
    })();
  }
})();
true;
`

// Source returns the script injected before embedded content loads.
func Source(opts SourceOptions) string {
	var b strings.Builder

	add := func(enabled bool, fragment string) {
		if enabled {
			b.WriteString(fragment)
		}
	}

	add(opts.API.MainButton, mainButtonFragment)
	add(opts.API.StatusBar, strings.Replace(statusBarFragment, "%s", mustJSON(opts.SafeArea), 1))
	add(opts.API.Toaster, toasterFragment)
	add(opts.API.Emitter, emitterFragment)
	add(opts.API.Auth, strings.Replace(authFragment, "%s", mustJSON(opts.Auth), 1))
	add(opts.API.Wallet, walletFragment)
	add(opts.API.DappClient, clientFragment)
	add(opts.API.Support, supportFragment)

	if opts.Extra != "" {
		b.WriteString(opts.Extra)
		b.WriteString("\n")
	}

	b.WriteString(guardFragment)

	return b.String()
}

// mustJSON encodes plain data structs that cannot fail to marshal.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic("inject: marshal: " + err.Error())
	}

	return string(data)
}
