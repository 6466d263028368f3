package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/accountapi"
)

// Tokens is the part of the token store the tracker needs.
type Tokens interface {
	Get(address string) (string, error)
	Delete(address string) error
}

// API is the part of the account service client the tracker needs.
type API interface {
	FetchUserState(ctx context.Context, token string) (accountapi.UserState, error)
	FetchAccounts(ctx context.Context, token string) ([]accountapi.Account, error)
}

// Tracker resolves account status against the service.
type Tracker struct {
	tokens Tokens
	api    API
	logger *slog.Logger
}

// NewTracker creates a Tracker. A nil logger discards output.
func NewTracker(tokens Tokens, api API, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Tracker{tokens: tokens, api: api, logger: logger}
}

// Status returns NeedEnrollment when no token is stored, otherwise Ready
// with the service's view of the user. A rejected token is deleted and
// ErrUnauthorized returned, so the next call yields NeedEnrollment.
func (t *Tracker) Status(ctx context.Context, address string) (account.Status, error) {
	token, err := t.tokens.Get(address)
	if err != nil {
		return nil, fmt.Errorf("status: read token: %w", err)
	}
	if token == "" {
		return account.NeedEnrollment{}, nil
	}

	state, err := t.api.FetchUserState(ctx, token)
	if err != nil {
		return nil, t.fail(address, err)
	}

	return account.NewReady(token, state.KYCStatus, state.NotificationSettings, state.Suspended), nil
}

// Accounts returns the service accounts and cards of address. Without a
// token there is nothing to fetch and the result is empty.
func (t *Tracker) Accounts(ctx context.Context, address string) ([]accountapi.Account, error) {
	token, err := t.tokens.Get(address)
	if err != nil {
		return nil, fmt.Errorf("status: read token: %w", err)
	}
	if token == "" {
		return nil, nil
	}

	accounts, err := t.api.FetchAccounts(ctx, token)
	if err != nil {
		return nil, t.fail(address, err)
	}

	return accounts, nil
}

func (t *Tracker) fail(address string, err error) error {
	if !errors.Is(err, accountapi.ErrUnauthorized) {
		return fmt.Errorf("status: %w", err)
	}

	t.logger.Info("status: token rejected, deleting", "account", address)

	if derr := t.tokens.Delete(address); derr != nil {
		return fmt.Errorf("status: delete rejected token: %w", errors.Join(err, derr))
	}

	return fmt.Errorf("status: %w", err)
}
