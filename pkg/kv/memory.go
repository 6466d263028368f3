package kv

import (
	"sort"
	"strings"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is a thread-safe in-memory Store. The zero value is ready to use.
type Memory struct {
	mu   sync.RWMutex
	once sync.Once
	data map[string]string
}

func (m *Memory) init() {
	m.once.Do(func() {
		m.data = make(map[string]string)
	})
}

// Get returns the value for key and whether it was found.
func (m *Memory) Get(key string) (string, bool, error) {
	m.init()
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]

	return v, ok, nil
}

// Set stores a value under key.
func (m *Memory) Set(key, value string) error {
	m.init()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value

	return nil
}

// Delete removes keys.
func (m *Memory) Delete(keys ...string) error {
	m.init()
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.data, k)
	}

	return nil
}

// Keys returns a sorted slice of keys starting with prefix.
func (m *Memory) Keys(prefix string) ([]string, error) {
	m.init()
	m.mu.RLock()
	defer m.mu.RUnlock()

	return matchingKeys(m.data, prefix), nil
}

func matchingKeys(data map[string]string, prefix string) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	return keys
}
