package accountapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/germanamz/hostbridge/pkg/account"
)

// UserState is the authenticated user's state as reported by the service.
type UserState struct {
	KYCStatus            *string                      `json:"kycStatus,omitempty"`
	NotificationSettings account.NotificationSettings `json:"notificationSettings"`
	Suspended            bool                         `json:"suspended"`
}

type tokenBody struct {
	Token string `json:"token"`
}

type userStateResponse struct {
	OK    bool       `json:"ok"`
	State *UserState `json:"state,omitempty"`
	Error string     `json:"error,omitempty"`
}

// invalidTokenErrors are the error codes the service uses for rejected
// tokens in otherwise successful responses.
var invalidTokenErrors = map[string]struct{}{
	"invalid-token": {},
	"expired-token": {},
}

// IsInvalidTokenMessage reports whether msg is one of the service's
// rejected-token error codes.
func IsInvalidTokenMessage(msg string) bool {
	_, ok := invalidTokenErrors[msg]
	return ok
}

// FetchUserState returns the user state for token.
func (c *Client) FetchUserState(ctx context.Context, token string) (UserState, error) {
	var res userStateResponse
	if err := c.PostJSON(ctx, "/v2/user/state", tokenBody{Token: token}, &res); err != nil {
		return UserState{}, fmt.Errorf("accountapi: user state: %w", err)
	}

	if !res.OK {
		if IsInvalidTokenMessage(res.Error) {
			return UserState{}, fmt.Errorf("accountapi: user state: %w", ErrUnauthorized)
		}
		return UserState{}, errors.New("accountapi: user state: " + res.Error)
	}

	if res.State == nil {
		return UserState{}, errors.New("accountapi: user state: empty state")
	}

	return *res.State, nil
}

// Card is a payment card attached to an account.
type Card struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	LastFourDigits string `json:"lastFourDigits,omitempty"`
}

// Account is one account (with its cards) owned by the user. Fields the host
// does not interpret are kept in Raw for collaborators that render them.
type Account struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Cards []Card          `json:"cards"`
	Raw   json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw document next to the decoded fields.
func (a *Account) UnmarshalJSON(data []byte) error {
	type plain Account

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*a = Account(p)
	a.Raw = append(json.RawMessage(nil), data...)

	return nil
}

type accountsResponse struct {
	OK    bool      `json:"ok"`
	List  []Account `json:"list"`
	Error string    `json:"error,omitempty"`
}

// FetchAccounts returns the user's accounts and cards.
func (c *Client) FetchAccounts(ctx context.Context, token string) ([]Account, error) {
	var res accountsResponse
	if err := c.PostJSON(ctx, "/v2/account/list", tokenBody{Token: token}, &res); err != nil {
		return nil, fmt.Errorf("accountapi: accounts: %w", err)
	}

	if !res.OK {
		if IsInvalidTokenMessage(res.Error) {
			return nil, fmt.Errorf("accountapi: accounts: %w", ErrUnauthorized)
		}
		return nil, errors.New("accountapi: accounts: " + res.Error)
	}

	return res.List, nil
}
