package tokenstore

import (
	"fmt"
	"log/slog"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/kv"
)

const (
	tokenPrefix        = "holders-jwt-"
	provisioningPrefix = "holders-provisioning-credentials-"
)

// DefaultMigrations is the ordered migration chain applied to every account.
var DefaultMigrations = []string{
	"holders-token-v1",
	"holders-token-v2-tonconnect",
	"holders-token-v3-solana",
}

// Store reads and writes session tokens. It holds no locks of its own: the
// backing kv.Store decides visibility and concurrent writers race with
// last-writer-wins semantics.
type Store struct {
	kv         kv.Store
	migrations []string
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMigrations replaces the migration chain.
func WithMigrations(names ...string) Option {
	return func(s *Store) { s.migrations = names }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store on top of backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:         backend,
		migrations: DefaultMigrations,
		logger:     slog.New(slog.DiscardHandler),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// Get returns the token stored for address, or "" when there is none. Any
// pending migration for the account is applied first, in which case "" is
// returned regardless of what was stored.
func (s *Store) Get(address string) (string, error) {
	key, err := normalize(address)
	if err != nil {
		return "", err
	}

	fired, err := s.migrate(key)
	if err != nil {
		return "", err
	}
	if fired {
		return "", nil
	}

	token, ok, err := s.kv.Get(tokenPrefix + key)
	if err != nil {
		return "", fmt.Errorf("tokenstore: get: %w", err)
	}
	if !ok {
		return "", nil
	}

	return token, nil
}

// Set stores token for address.
func (s *Store) Set(address, token string) error {
	key, err := normalize(address)
	if err != nil {
		return err
	}

	if err := s.kv.Set(tokenPrefix+key, token); err != nil {
		return fmt.Errorf("tokenstore: set: %w", err)
	}

	return nil
}

// Delete removes the token for address together with any cached wallet
// provisioning credentials issued for the account.
func (s *Store) Delete(address string) error {
	key, err := normalize(address)
	if err != nil {
		return err
	}

	return s.delete(key)
}

func (s *Store) delete(key string) error {
	keys, err := s.kv.Keys(provisioningPrefix + key + "-")
	if err != nil {
		return fmt.Errorf("tokenstore: list provisioning credentials: %w", err)
	}

	keys = append(keys, tokenPrefix+key)

	if err := s.kv.Delete(keys...); err != nil {
		return fmt.Errorf("tokenstore: delete: %w", err)
	}

	return nil
}

// SetProvisioningCredentials caches wallet provisioning credentials for the
// account under the given card id. They live until the token is deleted.
func (s *Store) SetProvisioningCredentials(address, cardID, credentials string) error {
	key, err := normalize(address)
	if err != nil {
		return err
	}

	if err := s.kv.Set(provisioningPrefix+key+"-"+cardID, credentials); err != nil {
		return fmt.Errorf("tokenstore: set provisioning credentials: %w", err)
	}

	return nil
}

// ProvisioningCredentials returns cached credentials for a card.
func (s *Store) ProvisioningCredentials(address, cardID string) (string, bool, error) {
	key, err := normalize(address)
	if err != nil {
		return "", false, err
	}

	v, ok, err := s.kv.Get(provisioningPrefix + key + "-" + cardID)
	if err != nil {
		return "", false, fmt.Errorf("tokenstore: get provisioning credentials: %w", err)
	}

	return v, ok, nil
}

func normalize(address string) (string, error) {
	key, err := account.Normalize(address)
	if err != nil {
		return "", fmt.Errorf("tokenstore: %w", err)
	}

	return key, nil
}
