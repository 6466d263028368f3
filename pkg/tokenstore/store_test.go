package tokenstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/hostbridge/pkg/kv"
)

const addr = "EQabc"

// migrated returns a store whose default migrations have already run for addr.
func migrated(t *testing.T, backend kv.Store) *Store {
	t.Helper()

	s := New(backend)
	_, err := s.Get(addr)
	require.NoError(t, err)

	return s
}

func TestGetSetDelete(t *testing.T) {
	s := migrated(t, &kv.Memory{})

	tok, err := s.Get(addr)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.Set(addr, "jwt"))

	tok, err = s.Get(addr)
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok)

	require.NoError(t, s.Delete(addr))

	tok, err = s.Get(addr)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestNormalizedKeys(t *testing.T) {
	s := New(&kv.Memory{}, WithMigrations())

	require.NoError(t, s.Set("EQa+b/", "jwt"))

	tok, err := s.Get("  EQa-b_ ")
	require.NoError(t, err)
	assert.Equal(t, "jwt", tok)
}

func TestEmptyAddress(t *testing.T) {
	s := New(&kv.Memory{})

	_, err := s.Get("")
	assert.Error(t, err)
	assert.Error(t, s.Set(" ", "x"))
	assert.Error(t, s.Delete(""))
}

func TestMigrations_AllFireOnFirstRead(t *testing.T) {
	backend := &kv.Memory{}
	require.NoError(t, backend.Set(tokenPrefix+addr, "stale"))

	s := New(backend, WithMigrations("m1", "m2", "m3"))

	tok, err := s.Get(addr)
	require.NoError(t, err)
	assert.Empty(t, tok, "a read that applies migrations reports absent")

	for _, name := range []string{"m1", "m2", "m3"} {
		done, err := s.Applied(name, addr)
		require.NoError(t, err)
		assert.True(t, done, name)
	}

	_, ok, err := backend.Get(tokenPrefix + addr)
	require.NoError(t, err)
	assert.False(t, ok, "token deleted by migration")
}

func TestMigrations_SecondReadReturnsStoredValue(t *testing.T) {
	backend := &kv.Memory{}
	s := New(backend, WithMigrations("m1", "m2"))

	_, err := s.Get(addr)
	require.NoError(t, err)

	require.NoError(t, s.Set(addr, "fresh"))

	tok, err := s.Get(addr)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
}

func TestMigrations_FireEvenWithoutStoredToken(t *testing.T) {
	backend := &kv.Memory{}
	s := New(backend, WithMigrations("m1"))

	tok, err := s.Get(addr)
	require.NoError(t, err)
	assert.Empty(t, tok)

	done, err := s.Applied("m1", addr)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestMigrations_NewMigrationAppendedLater(t *testing.T) {
	backend := &kv.Memory{}

	first := New(backend, WithMigrations("m1"))
	_, err := first.Get(addr)
	require.NoError(t, err)
	require.NoError(t, first.Set(addr, "tok"))

	second := New(backend, WithMigrations("m1", "m2"))

	tok, err := second.Get(addr)
	require.NoError(t, err)
	assert.Empty(t, tok, "only m2 is pending and it still forces absent")

	require.NoError(t, second.Set(addr, "tok2"))

	tok, err = second.Get(addr)
	require.NoError(t, err)
	assert.Equal(t, "tok2", tok)
}

func TestMigrations_PerAccount(t *testing.T) {
	backend := &kv.Memory{}
	s := New(backend, WithMigrations("m1"))

	_, err := s.Get(addr)
	require.NoError(t, err)

	done, err := s.Applied("m1", "EQother")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestDeletePurgesProvisioningCredentials(t *testing.T) {
	backend := &kv.Memory{}
	s := migrated(t, backend)

	require.NoError(t, s.Set(addr, "jwt"))
	require.NoError(t, s.SetProvisioningCredentials(addr, "card-1", "c1"))
	require.NoError(t, s.SetProvisioningCredentials(addr, "card-2", "c2"))
	require.NoError(t, s.SetProvisioningCredentials("EQother", "card-3", "c3"))

	require.NoError(t, s.Delete(addr))

	_, ok, err := s.ProvisioningCredentials(addr, "card-1")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.ProvisioningCredentials("EQother", "card-3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c3", v)
}

func TestFileBackendPersistsFlags(t *testing.T) {
	path := t.TempDir() + "/kv.json"

	f, err := kv.OpenFile(path)
	require.NoError(t, err)
	s := New(f)
	_, err = s.Get(addr)
	require.NoError(t, err)
	require.NoError(t, s.Set(addr, "persisted"))

	reopened, err := kv.OpenFile(path)
	require.NoError(t, err)

	tok, err := New(reopened).Get(addr)
	require.NoError(t, err)
	assert.Equal(t, "persisted", tok)
}
