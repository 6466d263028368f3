package kv

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()

	f, err := OpenFile(filepath.Join(dir, "state", "kv.json"))
	require.NoError(t, err)

	db, err := OpenSQLite(SQLiteConfig{Path: filepath.Join(dir, "kv.db"), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Store{
		"memory": &Memory{},
		"file":   f,
		"sqlite": db,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("a", "1"))
			require.NoError(t, s.Set("a", "2"))

			v, ok, err := s.Get("a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "2", v)

			require.NoError(t, s.Delete("a", "never-existed"))

			_, ok, err = s.Get("a")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_KeysPrefix(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set("p-b", "x"))
			require.NoError(t, s.Set("p-a", "x"))
			require.NoError(t, s.Set("q-a", "x"))

			keys, err := s.Keys("p-")
			require.NoError(t, err)
			assert.Equal(t, []string{"p-a", "p-b"}, keys)

			all, err := s.Keys("")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestStore_KeysMultibytePrefix(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set("é-b", "x"))
			require.NoError(t, s.Set("é-a", "x"))
			require.NoError(t, s.Set("éa", "x"))
			require.NoError(t, s.Set("e-a", "x"))

			keys, err := s.Keys("é-")
			require.NoError(t, err)
			assert.Equal(t, []string{"é-a", "é-b"}, keys)
		})
	}
}

func TestBoolHelpers(t *testing.T) {
	s := &Memory{}

	v, err := GetBool(s, "flag")
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, SetBool(s, "flag", true))

	v, err = GetBool(s, "flag")
	require.NoError(t, err)
	assert.True(t, v)

	_, err = MustGet(s, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFile_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Set("token", "abc"))

	reopened, err := OpenFile(path)
	require.NoError(t, err)

	v, ok, err := reopened.Get("token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestFile_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	f, err := OpenFile(path)
	require.NoError(t, err)

	keys, err := f.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFile_FailedWriteRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Set("token", "abc"))

	// A non-empty directory in place of the file makes every rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(path, "blocker"), nil, 0o600))

	assert.Error(t, f.Set("token", "def"))
	assert.Error(t, f.Set("fresh", "x"))
	assert.Error(t, f.Delete("token"))

	v, ok, err := f.Get("token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok, err = f.Get("fresh")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestFile_ConcurrentWritesLastWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	f, err := OpenFile(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			_ = f.Set("k", "v")
		})
	}
	wg.Wait()

	require.NoError(t, f.Set("k", "final"))

	reopened, err := OpenFile(path)
	require.NoError(t, err)

	v, _, err := reopened.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "final", v)
}

func TestSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite(SQLiteConfig{})
	assert.Error(t, err)
}
