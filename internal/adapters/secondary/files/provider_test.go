package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monaca/localkit/internal/domain/entities"
	"github.com/monaca/localkit/internal/domain/ports"
)

func testTree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "app.css"), []byte("body{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "pkg", "index.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "draft.html~"), []byte("tmp"), 0o644))

	return root
}

func TestProvider_Tree(t *testing.T) {
	provider := NewProvider([]string{".git", "node_modules"})
	root := testTree(t)

	nodes, err := provider.Tree(root)
	require.NoError(t, err)

	paths := make(map[string]ports.FileNode, len(nodes))
	for _, n := range nodes {
		paths[n.Path] = n
	}

	assert.Contains(t, paths, "/index.html")
	assert.Contains(t, paths, "/css")
	assert.Contains(t, paths, "/css/app.css")

	assert.NotContains(t, paths, "/.git")
	assert.NotContains(t, paths, "/.git/HEAD")
	assert.NotContains(t, paths, "/node_modules")
	assert.NotContains(t, paths, "/node_modules/pkg/index.js")
	assert.NotContains(t, paths, "/draft.html~")

	assert.True(t, paths["/css"].IsDir)
	assert.False(t, paths["/index.html"].IsDir)
	assert.Equal(t, int64(len("<html></html>")), paths["/index.html"].Size)
}

func TestProvider_Read(t *testing.T) {
	provider := NewProvider(nil)
	root := testTree(t)

	t.Run("reads an existing file", func(t *testing.T) {
		data, err := provider.Read(root, "/index.html")
		require.NoError(t, err)
		assert.Equal(t, []byte("<html></html>"), data)
	})

	t.Run("nested path", func(t *testing.T) {
		data, err := provider.Read(root, "css/app.css")
		require.NoError(t, err)
		assert.Equal(t, []byte("body{}"), data)
	})

	t.Run("traversal outside the root", func(t *testing.T) {
		_, err := provider.Read(root, "../../etc/passwd")
		assert.ErrorIs(t, err, entities.ErrOutOfBounds)
	})

	t.Run("traversal is rejected even for missing targets", func(t *testing.T) {
		_, err := provider.Read(root, "../does-not-exist-anywhere")
		assert.ErrorIs(t, err, entities.ErrOutOfBounds)
	})

	t.Run("dot segments staying inside are fine", func(t *testing.T) {
		data, err := provider.Read(root, "css/../index.html")
		require.NoError(t, err)
		assert.Equal(t, []byte("<html></html>"), data)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := provider.Read(root, "/nope.txt")
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("directory path", func(t *testing.T) {
		_, err := provider.Read(root, "/css")
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})
}

func TestChecksum(t *testing.T) {
	// sha256 of "hello"
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Checksum([]byte("hello")),
	)
}
