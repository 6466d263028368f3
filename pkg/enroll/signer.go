package enroll

import (
	"context"
	"errors"

	"github.com/germanamz/hostbridge/pkg/account"
)

// ErrNoKey is returned by a KeyAuthenticator that holds no key material for
// the account.
var ErrNoKey = errors.New("enroll: no key material")

// Signer signs proof digests with the account's primary-chain key.
type Signer interface {
	SignProof(ctx context.Context, digest []byte) ([]byte, error)
}

// SecondarySigner signs messages with the account's secondary-chain key.
type SecondarySigner interface {
	PublicKey() string
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// Keys are the signers unlocked by local authentication. Secondary is nil
// for accounts without a secondary-chain key.
type Keys struct {
	Primary   Signer
	Secondary SecondarySigner
}

// KeyAuthenticator authenticates the user locally and unlocks the account's
// keys.
type KeyAuthenticator interface {
	Unlock(ctx context.Context, acc account.Account) (*Keys, error)
}

// Device produces address proofs on a hardware signing device.
type Device interface {
	// AddressProof returns the proof signature for req using the key at the
	// derivation path.
	AddressProof(ctx context.Context, path string, req ProofRequest) ([]byte, error)
}
