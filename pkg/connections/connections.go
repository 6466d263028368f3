package connections

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/kv"
)

const keyPrefix = "connected-app-"

// Type is the transport a connection was established over.
type Type string

const (
	// Injected connections talk through the in-page bridge namespace.
	Injected Type = "injected"
	// HTTP connections talk through a remote relay.
	HTTP Type = "http"
)

// ReplyItem is one item returned to the app in a connect reply.
type ReplyItem struct {
	Name      string          `json:"name"`
	Address   string          `json:"address,omitempty"`
	Network   string          `json:"network,omitempty"`
	PublicKey string          `json:"publicKey,omitempty"`
	StateInit string          `json:"walletStateInit,omitempty"`
	Proof     json.RawMessage `json:"proof,omitempty"`
}

// Connection is one established connection.
type Connection struct {
	Type            Type        `json:"type"`
	ReplyItems      []ReplyItem `json:"replyItems,omitempty"`
	ClientSessionID string      `json:"clientSessionId,omitempty"`
}

// App describes a connected app.
type App struct {
	Name                string `json:"name"`
	URL                 string `json:"url"`
	IconURL             string `json:"iconUrl"`
	ManifestURL         string `json:"manifestUrl"`
	AutoConnectDisabled bool   `json:"autoConnectDisabled"`
}

// Record is everything stored for one (account, app) pair.
type Record struct {
	App         App          `json:"app"`
	Connections []Connection `json:"connections"`
}

// ExtensionKey derives the storage key for an app URL.
func ExtensionKey(appURL string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(appURL))))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Store reads and writes connection records.
type Store struct {
	kv kv.Store
}

// New creates a Store on top of backend.
func New(backend kv.Store) *Store {
	return &Store{kv: backend}
}

func recordKey(address, appURL string) (string, error) {
	acc, err := account.Normalize(address)
	if err != nil {
		return "", fmt.Errorf("connections: %w", err)
	}

	return keyPrefix + acc + "-" + ExtensionKey(appURL), nil
}

// Get returns the record for the account and app URL.
func (s *Store) Get(address, appURL string) (*Record, bool, error) {
	key, err := recordKey(address, appURL)
	if err != nil {
		return nil, false, err
	}

	raw, ok, err := s.kv.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("connections: get: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false, fmt.Errorf("connections: decode record: %w", err)
	}

	return &rec, true, nil
}

// Save stores conn for app. An existing connection of the same type is
// replaced; connections of other types are kept.
func (s *Store) Save(address string, app App, conn Connection) error {
	key, err := recordKey(address, app.URL)
	if err != nil {
		return err
	}

	rec, _, err := s.Get(address, app.URL)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &Record{}
	}

	rec.App = app

	kept := rec.Connections[:0]
	for _, c := range rec.Connections {
		if c.Type != conn.Type {
			kept = append(kept, c)
		}
	}
	rec.Connections = append(kept, conn)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("connections: encode record: %w", err)
	}

	if err := s.kv.Set(key, string(data)); err != nil {
		return fmt.Errorf("connections: save: %w", err)
	}

	return nil
}

// HasInjected reports whether an injected connection exists for the app.
func (s *Store) HasInjected(address, appURL string) (bool, error) {
	rec, ok, err := s.Get(address, appURL)
	if err != nil || !ok {
		return false, err
	}

	for _, c := range rec.Connections {
		if c.Type == Injected {
			return true, nil
		}
	}

	return false, nil
}

// Remove deletes the record for the account and app URL.
func (s *Store) Remove(address, appURL string) error {
	key, err := recordKey(address, appURL)
	if err != nil {
		return err
	}

	if err := s.kv.Delete(key); err != nil {
		return fmt.Errorf("connections: remove: %w", err)
	}

	return nil
}
