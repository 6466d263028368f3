package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/enroll"
)

const seedEnv = "HOSTBRIDGE_SEED"

// seedSigner signs proofs with an ed25519 key derived from a 32-byte seed.
// It stands in for the platform's key store.
type seedSigner struct {
	key ed25519.PrivateKey
}

func parseSeed(s string) (*seedSigner, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", seedEnv, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%s: want %d bytes, got %d", seedEnv, ed25519.SeedSize, len(seed))
	}

	return &seedSigner{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// seedSignerFromEnv returns nil when no seed is configured.
func seedSignerFromEnv() (*seedSigner, error) {
	s := os.Getenv(seedEnv)
	if s == "" {
		return nil, nil
	}

	return parseSeed(s)
}

func (s *seedSigner) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

func (s *seedSigner) SignProof(_ context.Context, digest []byte) ([]byte, error) {
	return ed25519.Sign(s.key, digest), nil
}

func (s *seedSigner) Unlock(context.Context, account.Account) (*enroll.Keys, error) {
	return &enroll.Keys{Primary: s}, nil
}
