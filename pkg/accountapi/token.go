package accountapi

import (
	"context"
	"errors"
	"fmt"
)

// ProofDomain is the signed domain of a proof.
type ProofDomain struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

// Proof is an address-ownership proof on the primary chain.
type Proof struct {
	Timestamp int64       `json:"timestamp"`
	Domain    ProofDomain `json:"domain"`
	Signature string      `json:"signature"` // base64
	Payload   string      `json:"payload"`
}

// WalletAuth proves control of the primary-chain wallet.
type WalletAuth struct {
	Address         string `json:"address"`
	Network         string `json:"network"`
	PublicKey       string `json:"publicKey"` // hex
	WalletStateInit string `json:"walletStateInit"`
	Proof           Proof  `json:"proof"`
}

// SecondaryAuth proves control of the account's secondary-chain key.
type SecondaryAuth struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// TokenRequest exchanges proofs for a session token.
type TokenRequest struct {
	Kind      string         `json:"kind"`
	Wallet    WalletAuth     `json:"wallet"`
	Secondary *SecondaryAuth `json:"solana,omitempty"`
}

// TokenKind is the only request kind the service accepts.
const TokenKind = "tonconnect-v2"

type tokenResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// ExchangeToken submits the proofs and returns the issued session token.
func (c *Client) ExchangeToken(ctx context.Context, req TokenRequest) (string, error) {
	if req.Kind == "" {
		req.Kind = TokenKind
	}

	var res tokenResponse
	if err := c.PostJSON(ctx, "/v2/user/wallet/connect", req, &res); err != nil {
		return "", fmt.Errorf("accountapi: exchange token: %w", err)
	}

	if !res.OK || res.Token == "" {
		msg := res.Error
		if msg == "" {
			msg = "no token issued"
		}
		return "", errors.New("accountapi: exchange token: " + msg)
	}

	return res.Token, nil
}
