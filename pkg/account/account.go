package account

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyAddress is returned when an address normalizes to nothing.
var ErrEmptyAddress = errors.New("account: empty address")

// WalletVersion identifies the wallet contract revision.
type WalletVersion string

const (
	WalletV4R2 WalletVersion = "v4R2"
	WalletV5R1 WalletVersion = "v5R1"
)

// SigningPath selects how an account produces proofs.
type SigningPath string

const (
	// SigningSoftware signs with keys held by the host after local authentication.
	SigningSoftware SigningPath = "software"
	// SigningDevice signs on an external hardware device.
	SigningDevice SigningPath = "device"
)

// Account is a wallet account known to the host.
type Account struct {
	Address    string // Normalized friendly address; the persistence key.
	RawAddress string // Workchain-prefixed raw form ("0:<hex>").
	PublicKey  []byte
	Version    WalletVersion
	Signing    SigningPath
	// DeviceIndex is the account number on the hardware device.
	DeviceIndex int
	// SecondaryAddress is the account's address on the secondary chain, if any.
	SecondaryAddress string
	Testnet          bool
}

// Normalize returns the canonical key form of a friendly address: trimmed,
// with the standard base64 alphabet mapped to the url-safe one so both
// encodings of one address share storage keys.
func Normalize(address string) (string, error) {
	a := strings.TrimSpace(address)
	if a == "" {
		return "", ErrEmptyAddress
	}

	a = strings.NewReplacer("+", "-", "/", "_").Replace(a)

	return a, nil
}

// MustNormalize is Normalize for callers holding an already-validated address.
func MustNormalize(address string) string {
	a, err := Normalize(address)
	if err != nil {
		panic(fmt.Sprintf("account: %v", err))
	}

	return a
}

// Network returns the chain identifier used in connect reply items.
func (a Account) Network() string {
	if a.Testnet {
		return "-3"
	}

	return "-239"
}
