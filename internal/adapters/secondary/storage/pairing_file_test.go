package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairingFile_Load(t *testing.T) {
	t.Run("missing file is an empty store", func(t *testing.T) {
		store := NewPairingFile(filepath.Join(t.TempDir(), "pairing.json"))

		keys, err := store.Load()
		require.NoError(t, err)
		assert.NotNil(t, keys)
		assert.Empty(t, keys)
	})

	t.Run("reads a saved map back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "pairing.json")
		store := NewPairingFile(path)

		want := map[string]string{"h1": "k1", "h2": "k2"}
		require.NoError(t, store.Save(want))

		keys, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, want, keys)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pairing.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err := NewPairingFile(path).Load()
		assert.ErrorContains(t, err, "parsing")
	})
}

func TestPairingFile_Save(t *testing.T) {
	t.Run("creates the store directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config", "localkit", "pairing.json")
		store := NewPairingFile(path)

		require.NoError(t, store.Save(map[string]string{"h1": "k1"}))

		_, err := os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("file is private", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission bits are not meaningful on windows")
		}

		path := filepath.Join(t.TempDir(), "pairing.json")
		store := NewPairingFile(path)
		require.NoError(t, store.Save(map[string]string{"h1": "k1"}))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("rewrite replaces removed entries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pairing.json")
		store := NewPairingFile(path)

		require.NoError(t, store.Save(map[string]string{"h1": "k1", "h2": "k2"}))
		require.NoError(t, store.Save(map[string]string{"h1": "k1"}))

		keys, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"h1": "k1"}, keys)
	})
}

func TestDefaultPath(t *testing.T) {
	path := DefaultPath()
	assert.Contains(t, path, "localkit")
	assert.Equal(t, "pairing.json", filepath.Base(path))
}
