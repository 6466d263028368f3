package inject

import (
	"encoding/json"
	"fmt"
)

// script delivers a payload to a handler installed by one of the fragments.
// The handler is looked up at run time so a missing capability is a no-op.
func script(object, method string, args ...any) string {
	encoded := ""
	for i, a := range args {
		if i > 0 {
			encoded += ", "
		}
		encoded += mustJSON(a)
	}

	return fmt.Sprintf(`(() => {
  const target = window[%q];
  if (target && typeof target.%s === 'function') {
    target.%s(%s);
  }
})();
true;
`, object, method, method, encoded)
}

// Envelope is the generic response sent back for an id.
type Envelope struct {
	ID   json.RawMessage `json:"id"`
	Data any             `json:"data"`
}

// LegacyError is the error branch of the legacy schema.
type LegacyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// LegacyPayload is the legacy two-branch response.
type LegacyPayload struct {
	Type   string       `json:"type"` // "success" or "error"
	Result any          `json:"result,omitempty"`
	Error  *LegacyError `json:"error,omitempty"`
}

// DispatchResponse returns the script resolving a generic call.
func DispatchResponse(id json.RawMessage, res Result) string {
	return script("tonhub-client", "__response", Envelope{ID: id, Data: res})
}

// DispatchLegacyResponse returns the script resolving a legacy engine call.
func DispatchLegacyResponse(id json.RawMessage, payload LegacyPayload) string {
	return script("tonhub-client", "__legacyResponse", Envelope{ID: id, Data: payload})
}

// DispatchMainButtonClick fires the registered main button click callback.
func DispatchMainButtonClick() string {
	return script("main-button", "__response")
}

// AuthResponse answers auth.authenticate.
type AuthResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	LastAuthTime    *int64 `json:"lastAuthTime,omitempty"`
}

// LockResponse answers auth.lockAppWithAuth.
type LockResponse struct {
	IsSecured    bool   `json:"isSecured"`
	LastAuthTime *int64 `json:"lastAuthTime,omitempty"`
}

// DispatchLastAuthTime answers auth.getLastAuthTime.
func DispatchLastAuthTime(lastAuthTime int64) string {
	return script("tonhub-auth", "__response", "getLastAuthTime", map[string]int64{"lastAuthTime": lastAuthTime})
}

// DispatchAuth answers auth.authenticate.
func DispatchAuth(res AuthResponse) string {
	return script("tonhub-auth", "__response", "authenticate", res)
}

// DispatchLockAppWithAuth answers auth.lockAppWithAuth.
func DispatchLockAppWithAuth(res LockResponse) string {
	return script("tonhub-auth", "__response", "lockAppWithAuth", res)
}

// DispatchWallet answers any wallet.* call.
func DispatchWallet(result any) string {
	return script("tonhub-wallet", "__response", map[string]any{"result": result})
}

// LocalStorageProbe returns a script that reports the page's local storage
// status back to the host as a localStorageStatus event tagged with id.
func LocalStorageProbe(id string) string {
	return fmt.Sprintf(`(() => {
  const report = { name: 'localStorageStatus', id: %s, isAvailable: false, isObjectAvailable: false, keys: [], totalSizeBytes: 0 };
  try {
    report.isObjectAvailable = typeof window.localStorage !== 'undefined' && window.localStorage !== null;
    if (report.isObjectAvailable) {
      const probe = '__hostbridge_probe__';
      window.localStorage.setItem(probe, probe);
      window.localStorage.removeItem(probe);
      report.isAvailable = true;
      for (let i = 0; i < window.localStorage.length; i++) {
        const key = window.localStorage.key(i);
        const value = window.localStorage.getItem(key) || '';
        report.keys.push(key);
        report.totalSizeBytes += (key.length + value.length) * 2;
      }
    }
  } catch (e) {
    report.error = String(e);
  }
  window.ReactNativeWebView.postMessage(JSON.stringify({ data: report }));
})();
true;
`, mustJSON(id))
}
