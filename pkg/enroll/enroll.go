package enroll

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/accountapi"
	"github.com/germanamz/hostbridge/pkg/connections"
	"github.com/germanamz/hostbridge/pkg/device"
	"github.com/google/uuid"
)

// Config wires an Enroller. Tokens, Connections, API and Wallets are
// required; Keys and Device are required by the software and device paths
// respectively.
type Config struct {
	// AppURL is the embedded app origin enrollment binds to.
	AppURL string
	// ManifestURL defaults to AppURL + "/jsons/tonconnect-manifest.json".
	ManifestURL string

	Tokens      Tokens
	Connections Connections
	API         API
	Wallets     WalletBuilder
	Keys        KeyAuthenticator
	Device      Device
	Alerter     device.Alerter
	Refresher   Refresher
	Observer    Observer

	Clock  func() time.Time
	Logger *slog.Logger
}

// Enroller runs enrollment attempts, one at a time.
type Enroller struct {
	cfg      Config
	logger   *slog.Logger
	inFlight atomic.Bool
}

// New creates an Enroller.
func New(cfg Config) *Enroller {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.ManifestURL == "" {
		cfg.ManifestURL = strings.TrimRight(cfg.AppURL, "/") + "/jsons/tonconnect-manifest.json"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Enroller{cfg: cfg, logger: logger}
}

// InFlight reports whether an attempt is running.
func (e *Enroller) InFlight() bool {
	return e.inFlight.Load()
}

// attempt carries the per-call state. It is discarded when Enroll returns.
type attempt struct {
	id       string
	acc      account.Account
	state    State
	manifest *accountapi.Manifest
	domain   string
	logger   *slog.Logger
	observer Observer
}

func (a *attempt) to(s State) {
	a.transition(s, "")
}

func (a *attempt) transition(s State, kind ErrorKind) {
	from := a.state
	a.state = s
	a.logger.Debug("enroll: transition", "from", from, "to", s)

	if a.observer != nil {
		a.observer(Transition{AttemptID: a.id, From: from, To: s, Error: kind})
	}
}

// Enroll runs one attempt for req.Account. It never returns an error: every
// failure is a Result with an ErrorKind. A call made while another attempt
// is in flight returns a skipped Result.
func (e *Enroller) Enroll(ctx context.Context, req Request) Result {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Debug("enroll: attempt already in flight")
		return Result{Type: ResultSkipped}
	}
	defer e.inFlight.Store(false)

	a := &attempt{
		id:       uuid.NewString(),
		acc:      req.Account,
		state:    Idle,
		observer: e.cfg.Observer,
	}
	a.logger = e.logger.With("attempt", a.id, "account", req.Account.Address, "signing", req.Account.Signing)

	res := e.run(ctx, a, req)

	if res.Type == ResultSuccess {
		a.to(Success)
		a.logger.Info("enroll: succeeded")
	} else {
		a.transition(Failed, res.Error)
		a.logger.Info("enroll: failed", "error", res.Error)
	}

	e.afterEnroll(ctx, a)

	return res
}

func (e *Enroller) run(ctx context.Context, a *attempt, req Request) Result {
	addr := a.acc.Address

	if req.InviteID != "" {
		if err := e.cfg.Tokens.Delete(addr); err != nil {
			a.logger.Warn("enroll: failed to reset token for invite", "error", err)
		}
	}

	if e.alreadyEnrolled(a) {
		a.logger.Debug("enroll: token and injected connection present")
		return succeeded()
	}

	var res Result
	switch a.acc.Signing {
	case account.SigningDevice:
		res = e.runDevice(ctx, a)
	default:
		res = e.runSoftware(ctx, a)
	}

	if res.Type != ResultSuccess {
		if err := e.cfg.Tokens.Delete(addr); err != nil {
			a.logger.Warn("enroll: failed to delete partial token", "error", err)
		}
	}

	return res
}

func (e *Enroller) alreadyEnrolled(a *attempt) bool {
	token, err := e.cfg.Tokens.Get(a.acc.Address)
	if err != nil || token == "" {
		return false
	}

	injected, err := e.cfg.Connections.HasInjected(a.acc.Address, e.cfg.AppURL)
	if err != nil {
		a.logger.Warn("enroll: failed to read connections", "error", err)
		return false
	}

	return injected
}

func (e *Enroller) fetchManifest(ctx context.Context, a *attempt) bool {
	a.to(ManifestFetch)

	m, err := e.cfg.API.FetchManifest(ctx, e.cfg.ManifestURL)
	if err != nil || m == nil {
		a.logger.Warn("enroll: manifest fetch failed", "url", e.cfg.ManifestURL, "error", err)
		return false
	}

	a.manifest = m
	a.domain = domainOf(m.URL)
	if a.domain == "" {
		a.domain = domainOf(e.cfg.AppURL)
	}

	return true
}

func (e *Enroller) runSoftware(ctx context.Context, a *attempt) Result {
	a.to(Authenticating)

	if e.cfg.Keys == nil {
		return failed(NoDomainKey)
	}

	keys, err := e.cfg.Keys.Unlock(ctx, a.acc)
	if err != nil {
		a.logger.Warn("enroll: local authentication failed", "error", err)
		if errors.Is(err, ErrNoKey) {
			return failed(NoDomainKey)
		}
		return failed(DomainKeyFailed)
	}
	if keys == nil || keys.Primary == nil {
		return failed(NoDomainKey)
	}

	if !e.fetchManifest(ctx, a) {
		return failed(ManifestFailed)
	}

	stateInit, err := e.cfg.Wallets.StateInit(a.acc)
	if err != nil {
		a.logger.Warn("enroll: failed to build wallet state init", "error", err)
		return failed(ReplyItemsFailed)
	}

	a.to(Signing)

	proofReq := e.proofRequest(a)
	digest, err := proofReq.Message()
	if err != nil {
		a.logger.Warn("enroll: failed to build proof message", "error", err)
		return failed(ReplyItemsFailed)
	}

	sig, err := keys.Primary.SignProof(ctx, digest)
	if err != nil {
		a.logger.Warn("enroll: failed to sign proof", "error", err)
		return failed(CreateSignatureFailed)
	}
	if len(sig) == 0 {
		return failed(NoProof)
	}

	auth := e.walletAuth(a, stateInit, proofReq, sig)
	items, err := replyItems(auth)
	if err != nil {
		a.logger.Warn("enroll: failed to build reply items", "error", err)
		return failed(ReplyItemsFailed)
	}

	tokenReq := accountapi.TokenRequest{Kind: accountapi.TokenKind, Wallet: auth}

	if a.acc.SecondaryAddress != "" && keys.Secondary != nil {
		secondary, err := e.signSecondary(ctx, a, keys.Secondary, proofReq.Timestamp)
		if err != nil {
			a.logger.Warn("enroll: failed to sign secondary proof", "error", err)
			return failed(SignFailed)
		}
		tokenReq.Secondary = secondary
		items = append(items, connections.ReplyItem{
			Name:      "solana_proof",
			Address:   secondary.Address,
			PublicKey: secondary.PublicKey,
		})
	}

	return e.exchange(ctx, a, items, tokenReq)
}

func (e *Enroller) runDevice(ctx context.Context, a *attempt) Result {
	a.to(Authenticating)

	if e.cfg.Device == nil {
		device.Handle(ctx, e.cfg.Alerter, device.ErrNotConnected)
		return failed(LedgerHandled)
	}

	if !e.fetchManifest(ctx, a) {
		return failed(ManifestFailed)
	}

	stateInit, err := e.cfg.Wallets.StateInit(a.acc)
	if err != nil {
		a.logger.Warn("enroll: failed to build wallet state init", "error", err)
		return failed(ReplyItemsFailed)
	}

	a.to(Signing)

	proofReq := e.proofRequest(a)
	path := account.DevicePath(a.acc.DeviceIndex, a.acc.Testnet)

	sig, err := e.cfg.Device.AddressProof(ctx, path, proofReq)
	if err != nil {
		de := device.Handle(ctx, e.cfg.Alerter, err)
		a.logger.Warn("enroll: device proof failed", "path", path, "kind", de.Kind.String())
		return failed(LedgerHandled)
	}
	if len(sig) == 0 {
		return failed(NoProof)
	}

	auth := e.walletAuth(a, stateInit, proofReq, sig)
	items, err := replyItems(auth)
	if err != nil {
		a.logger.Warn("enroll: failed to build reply items", "error", err)
		return failed(ReplyItemsFailed)
	}

	return e.exchange(ctx, a, items, accountapi.TokenRequest{Kind: accountapi.TokenKind, Wallet: auth})
}

// exchange persists the connection record, trades the proofs for a token
// and stores it.
func (e *Enroller) exchange(ctx context.Context, a *attempt, items []connections.ReplyItem, req accountapi.TokenRequest) Result {
	app := connections.App{
		Name:        a.manifest.Name,
		URL:         e.cfg.AppURL,
		IconURL:     a.manifest.IconURL,
		ManifestURL: e.cfg.ManifestURL,
	}

	err := e.cfg.Connections.Save(a.acc.Address, app, connections.Connection{
		Type:       connections.Injected,
		ReplyItems: items,
	})
	if err != nil {
		a.logger.Warn("enroll: failed to save connection", "error", err)
		return failed(FetchTokenFailed)
	}

	a.to(TokenExchange)

	token, err := e.cfg.API.ExchangeToken(ctx, req)
	if err != nil {
		a.logger.Warn("enroll: token exchange failed", "error", err)
		return failed(FetchTokenFailed)
	}

	if err := e.cfg.Tokens.Set(a.acc.Address, token); err != nil {
		a.logger.Warn("enroll: failed to store token", "error", err)
		return failed(FetchTokenFailed)
	}

	return succeeded()
}

func (e *Enroller) afterEnroll(ctx context.Context, a *attempt) {
	if e.cfg.Refresher == nil {
		return
	}

	if err := e.cfg.Refresher.Refresh(ctx, a.acc.Address); err != nil {
		a.logger.Warn("enroll: status refresh failed", "kind", AfterEnrollFailed, "error", err)
	}
}

func (e *Enroller) proofRequest(a *attempt) ProofRequest {
	return ProofRequest{
		RawAddress: a.acc.RawAddress,
		Domain:     a.domain,
		Timestamp:  e.cfg.Clock().Unix(),
		Payload:    ProofPayload,
	}
}

func (e *Enroller) walletAuth(a *attempt, stateInit string, req ProofRequest, sig []byte) accountapi.WalletAuth {
	return accountapi.WalletAuth{
		Address:         a.acc.RawAddress,
		Network:         a.acc.Network(),
		PublicKey:       hex.EncodeToString(a.acc.PublicKey),
		WalletStateInit: stateInit,
		Proof: accountapi.Proof{
			Timestamp: req.Timestamp,
			Domain:    accountapi.ProofDomain{LengthBytes: len(req.Domain), Value: req.Domain},
			Signature: base64.StdEncoding.EncodeToString(sig),
			Payload:   req.Payload,
		},
	}
}

func (e *Enroller) signSecondary(ctx context.Context, a *attempt, s SecondarySigner, ts int64) (*accountapi.SecondaryAuth, error) {
	msg := secondaryMessage(a.domain, a.acc.SecondaryAddress, ts)

	sig, err := s.SignMessage(ctx, []byte(msg))
	if err != nil {
		return nil, err
	}
	if len(sig) == 0 {
		return nil, errors.New("enroll: empty secondary signature")
	}

	return &accountapi.SecondaryAuth{
		Address:   a.acc.SecondaryAddress,
		PublicKey: s.PublicKey(),
		Message:   msg,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

func secondaryMessage(domain, address string, ts int64) string {
	return fmt.Sprintf("%s wants you to sign in with your account:\n%s\n\nIssued At: %s",
		domain, address, time.Unix(ts, 0).UTC().Format(time.RFC3339))
}

func replyItems(auth accountapi.WalletAuth) ([]connections.ReplyItem, error) {
	proof, err := json.Marshal(auth.Proof)
	if err != nil {
		return nil, err
	}

	return []connections.ReplyItem{
		{
			Name:      "ton_addr",
			Address:   auth.Address,
			Network:   auth.Network,
			PublicKey: auth.PublicKey,
			StateInit: auth.WalletStateInit,
		},
		{
			Name:  "ton_proof",
			Proof: proof,
		},
	}, nil
}

// domainOf returns the host of rawURL, or "" when it has none.
func domainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	return u.Host
}
