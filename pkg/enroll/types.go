package enroll

import (
	"context"
	"fmt"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/accountapi"
	"github.com/germanamz/hostbridge/pkg/connections"
)

// State is a step of an enrollment attempt.
type State string

const (
	Idle           State = "idle"
	Authenticating State = "authenticating"
	ManifestFetch  State = "manifest-fetch"
	Signing        State = "signing"
	TokenExchange  State = "token-exchange"
	Success        State = "success"
	Failed         State = "error"
)

// ErrorKind is the closed set of enrollment failures.
type ErrorKind string

const (
	NoDomainKey           ErrorKind = "no-domain-key"
	DomainKeyFailed       ErrorKind = "domain-key-failed"
	FetchTokenFailed      ErrorKind = "fetch-token-failed"
	CreateSignatureFailed ErrorKind = "create-signature-failed"
	AfterEnrollFailed     ErrorKind = "after-enroll-failed"
	SignFailed            ErrorKind = "sign-failed"
	ManifestFailed        ErrorKind = "manifest-failed"
	ReplyItemsFailed      ErrorKind = "reply-items-failed"
	NoProof               ErrorKind = "no-proof"
	LedgerHandled         ErrorKind = "ledger-handled"
)

// ResultType discriminates Result.
type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultError   ResultType = "error"
	// ResultSkipped is returned when another attempt is already in flight.
	ResultSkipped ResultType = "skipped"
)

// Result is the outcome of Enroll. Error is set only for ResultError.
type Result struct {
	Type  ResultType `json:"type"`
	Error ErrorKind  `json:"error,omitempty"`
}

func (r Result) String() string {
	if r.Type == ResultError {
		return fmt.Sprintf("error(%s)", r.Error)
	}
	return string(r.Type)
}

func succeeded() Result            { return Result{Type: ResultSuccess} }
func failed(kind ErrorKind) Result { return Result{Type: ResultError, Error: kind} }

// Transition is reported to the Observer for every state change.
type Transition struct {
	AttemptID string
	From      State
	To        State
	Error     ErrorKind // Set when To is Failed.
}

// Observer receives transitions synchronously.
type Observer func(Transition)

// Request starts an attempt.
type Request struct {
	Account account.Account
	// InviteID forces a fresh handshake when set.
	InviteID string
}

// Tokens stores session tokens. *tokenstore.Store implements it.
type Tokens interface {
	Get(address string) (string, error)
	Set(address, token string) error
	Delete(address string) error
}

// Connections stores connection records. *connections.Store implements it.
type Connections interface {
	HasInjected(address, appURL string) (bool, error)
	Save(address string, app connections.App, conn connections.Connection) error
}

// API is the part of the account service used by enrollment.
// *accountapi.Client implements it.
type API interface {
	FetchManifest(ctx context.Context, url string) (*accountapi.Manifest, error)
	ExchangeToken(ctx context.Context, req accountapi.TokenRequest) (string, error)
}

// WalletBuilder derives the wallet contract's state-init (base64 BoC) from
// the account's public key and version.
type WalletBuilder interface {
	StateInit(acc account.Account) (string, error)
}

// WalletBuilderFunc adapts a function to WalletBuilder.
type WalletBuilderFunc func(acc account.Account) (string, error)

// StateInit calls f.
func (f WalletBuilderFunc) StateInit(acc account.Account) (string, error) { return f(acc) }

// Refresher refreshes the account status after an attempt.
type Refresher interface {
	Refresh(ctx context.Context, address string) error
}
