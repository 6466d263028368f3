package bridge

import (
	"context"
	"encoding/json"
	"time"
)

// Injector evaluates a script inside the embedded content.
type Injector interface {
	InjectJavaScript(script string)
}

// InjectorFunc adapts a function to Injector.
type InjectorFunc func(script string)

// InjectJavaScript calls f.
func (f InjectorFunc) InjectJavaScript(script string) { f(script) }

// Authenticator is the host's local user authentication.
type Authenticator interface {
	// LastAuthTime is the unix time of the last successful authentication.
	LastAuthTime() int64
	// TimedOut reports whether the auth session expired.
	TimedOut() bool
	Authenticate(ctx context.Context) error
	// SetupMandatoryAuth asks the user to protect the app with auth and
	// reports whether it is now secured.
	SetupMandatoryAuth(ctx context.Context) (bool, error)
}

// AddCardRequest asks the platform wallet to provision a card.
type AddCardRequest struct {
	CardID                     string `json:"cardId"`
	CardholderName             string `json:"cardholderName"`
	PrimaryAccountNumberSuffix string `json:"primaryAccountNumberSuffix"`
	LocalizedDescription       string `json:"localizedDescription,omitempty"`
}

func (r AddCardRequest) valid() bool {
	return r.CardID != "" && r.CardholderName != "" && r.PrimaryAccountNumberSuffix != ""
}

// Wallet is the platform payment wallet.
type Wallet interface {
	IsEnabled(ctx context.Context) (bool, error)
	CheckIfCardIsAlreadyAdded(ctx context.Context, primaryAccountNumberSuffix string) (bool, error)
	CheckIfCardsAreAdded(ctx context.Context, cardIDs []string) (map[string]bool, error)
	CanAddCard(ctx context.Context, cardID string) (bool, error)
	AddCardToWallet(ctx context.Context, req AddCardRequest, token string, testnet bool) (bool, error)
}

// Tokens reads session tokens. *tokenstore.Store implements it.
type Tokens interface {
	Get(address string) (string, error)
}

// Toast durations accepted from content.
const (
	ToastShort   = 2000 * time.Millisecond
	ToastDefault = 3500 * time.Millisecond
	ToastLong    = 6000 * time.Millisecond
)

// Toast is a transient notification requested by content.
type Toast struct {
	Message      string
	Type         string // warning, default, error or success
	Duration     time.Duration
	MarginBottom *float64
}

// Toaster shows toasts.
type Toaster interface {
	Show(t Toast)
	Push(t Toast)
	Pop()
	Clear()
}

// StatusBar styles the host status bar.
type StatusBar interface {
	SetStyle(style string)
	SetBackgroundColor(color string)
}

// Support opens the support chat.
type Support interface {
	Show()
	ShowWithMessage(text string)
}

// LocalStorageStatus is the page's local storage report.
type LocalStorageStatus struct {
	ID                string   `json:"id,omitempty"`
	IsAvailable       bool     `json:"isAvailable"`
	IsObjectAvailable bool     `json:"isObjectAvailable"`
	Keys              []string `json:"keys"`
	TotalSizeBytes    int64    `json:"totalSizeBytes"`
	Error             string   `json:"error,omitempty"`
}

// Hooks are host actions triggered by content. Nil hooks are skipped.
type Hooks struct {
	Close              func()
	Enroll             func(payload string)
	Navigate           func(route string, params json.RawMessage)
	Subscribed         func()
	Emit               func(event string, args json.RawMessage)
	LocalStorageStatus func(LocalStorageStatus)
	MainButtonChanged  func(MainButton)
}
