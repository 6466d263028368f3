package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/hostbridge/pkg/account"
	"github.com/germanamz/hostbridge/pkg/accountapi"
	"github.com/germanamz/hostbridge/pkg/watcher"
)

// Resource names a cached answer.
type Resource string

const (
	ResourceStatus   Resource = "status"
	ResourceAccounts Resource = "accounts"
)

// Key addresses one cache entry.
type Key struct {
	Address  string
	Resource Resource
}

// Invalidation announces that an entry was refreshed or dropped.
type Invalidation struct {
	Key
	At  time.Time
	Err error
}

// Publisher receives invalidations. It must not block.
type Publisher func(Invalidation)

type entry struct {
	status   account.Status
	accounts []accountapi.Account
	at       time.Time
}

// Cache holds the last status and accounts answer per account. It is safe
// for concurrent use.
type Cache struct {
	tracker *Tracker
	publish Publisher
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[Key]entry
}

// NewCache creates a Cache on top of tracker. publish may be nil.
func NewCache(tracker *Tracker, publish Publisher, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if publish == nil {
		publish = func(Invalidation) {}
	}

	return &Cache{
		tracker: tracker,
		publish: publish,
		logger:  logger,
		now:     time.Now,
		entries: make(map[Key]entry),
	}
}

// Status returns the cached status of address.
func (c *Cache) Status(address string) (account.Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[keyOf(address, ResourceStatus)]

	return e.status, ok
}

// Accounts returns the cached accounts of address.
func (c *Cache) Accounts(address string) ([]accountapi.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[keyOf(address, ResourceAccounts)]

	return e.accounts, ok
}

// Refresh refetches every resource of address.
func (c *Cache) Refresh(ctx context.Context, address string) error {
	return errors.Join(
		c.RefreshResource(ctx, address, ResourceStatus),
		c.RefreshResource(ctx, address, ResourceAccounts),
	)
}

// RefreshResource refetches one entry. On failure the previous value is
// kept, except after an unauthorized answer, which drops it.
func (c *Cache) RefreshResource(ctx context.Context, address string, res Resource) error {
	key := keyOf(address, res)

	var (
		e   = entry{at: c.now()}
		err error
	)

	switch res {
	case ResourceStatus:
		e.status, err = c.tracker.Status(ctx, address)
	case ResourceAccounts:
		e.accounts, err = c.tracker.Accounts(ctx, address)
	default:
		return fmt.Errorf("status: unknown resource %q", res)
	}

	switch {
	case err == nil:
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
	case errors.Is(err, accountapi.ErrUnauthorized):
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	default:
		return err
	}

	c.publish(Invalidation{Key: key, At: e.at, Err: err})

	return err
}

// keyOf keys entries by normalized address so both encodings of an address
// share them.
func keyOf(address string, res Resource) Key {
	if n, err := account.Normalize(address); err == nil {
		address = n
	}

	return Key{Address: address, Resource: res}
}

// Poll refreshes address every interval until ctx ends, regardless of
// earlier failures.
func (c *Cache) Poll(ctx context.Context, address string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx, address); err != nil && ctx.Err() == nil {
				c.logger.Warn("status: poll refresh failed", "account", address, "error", err)
			}
		}
	}
}

// Policy returns the resource a watcher event invalidates.
func Policy(e watcher.Event) Resource {
	switch {
	case e.Type == watcher.StateChange:
		return ResourceStatus
	case e.Type == watcher.ErrorEvent && accountapi.IsInvalidTokenMessage(e.Message):
		return ResourceStatus
	default:
		return ResourceAccounts
	}
}

// Handler returns a watcher handler refreshing address per Policy.
func (c *Cache) Handler(ctx context.Context, address string) watcher.Handler {
	return func(e watcher.Event) {
		res := Policy(e)
		if err := c.RefreshResource(ctx, address, res); err != nil {
			c.logger.Warn("status: push refresh failed", "account", address, "resource", res, "event", e.Type, "error", err)
		}
	}
}
