package kv

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by helpers that require a key to exist.
var ErrNotFound = errors.New("kv: key not found")

// Store is a string key-value store.
type Store interface {
	// Get returns the value stored under key and whether it exists.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes the given keys. Missing keys are ignored.
	Delete(keys ...string) error
	// Keys returns the sorted keys that start with prefix.
	Keys(prefix string) ([]string, error)
}

// GetBool reads a boolean flag. Missing keys read as false.
func GetBool(s Store, key string) (bool, error) {
	v, ok, err := s.Get(key)
	if err != nil {
		return false, err
	}

	return ok && v == "true", nil
}

// SetBool stores a boolean flag.
func SetBool(s Store, key string, value bool) error {
	v := "false"
	if value {
		v = "true"
	}

	return s.Set(key, v)
}

// MustGet returns the value under key or ErrNotFound.
func MustGet(s Store, key string) (string, error) {
	v, ok, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return v, nil
}
