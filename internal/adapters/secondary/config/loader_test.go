package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	t.Run("baseline defaults", func(t *testing.T) {
		cfg := GetDefaultConfig()

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.True(t, cfg.Beacon.Enabled)
		assert.Equal(t, 8001, cfg.Beacon.Port)
		assert.Equal(t, 5000, cfg.Beacon.IntervalMs)
		assert.Equal(t, "www", cfg.Projects.Marker)
		assert.Contains(t, cfg.Projects.Ignore, "node_modules")
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("LOCALKIT_PORT", "9090")
		t.Setenv("LOCALKIT_BEACON", "false")
		t.Setenv("LOCALKIT_NAME", "workbench")

		cfg := GetDefaultConfig()

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.False(t, cfg.Beacon.Enabled)
		assert.Equal(t, "workbench", cfg.Server.Name)
	})

	t.Run("malformed environment values fall back", func(t *testing.T) {
		t.Setenv("LOCALKIT_PORT", "not-a-number")
		t.Setenv("LOCALKIT_BEACON", "perhaps")

		cfg := GetDefaultConfig()

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.True(t, cfg.Beacon.Enabled)
	})
}

func TestTOMLLoader(t *testing.T) {
	t.Run("create then load round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		loader := &TOMLLoader{globalPath: path}

		cfg, err := loader.LoadGlobal()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// First run wrote the defaults file.
		_, err = os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("loads an edited file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9999

[projects]
marker = "public"
`), 0o600))

		loader := &TOMLLoader{globalPath: path}
		cfg, err := loader.LoadGlobal()
		require.NoError(t, err)

		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "public", cfg.Projects.Marker)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 123456
`), 0o600))

		loader := &TOMLLoader{globalPath: path}
		_, err := loader.LoadGlobal()
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o600))

		loader := &TOMLLoader{globalPath: path}
		_, err := loader.LoadGlobal()
		assert.ErrorContains(t, err, "parsing TOML")
	})
}
