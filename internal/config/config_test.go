package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/internal/config"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	configDir := filepath.Join(dir, "asar")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ASAR_NO_ARCHIVE", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Verify)
	assert.Empty(t, cfg.Pack.Unpack)
	assert.False(t, cfg.NoArchive())
	assert.False(t, cfg.Verify())
	assert.Zero(t, cfg.MaxSymlinks())
	assert.Zero(t, cfg.Workers())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestLoad_FullConfig(t *testing.T) {
	writeConfig(t, `
[defaults]
no_archive = true
verify = true
log_level = "debug"
max_symlinks = 8
workers = 3

[pack]
unpack = ["*.node", "*.dll"]
unpack_dir = ["assets"]
`)
	t.Setenv("ASAR_NO_ARCHIVE", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.NoArchive())
	assert.True(t, cfg.Verify())
	assert.Equal(t, 8, cfg.MaxSymlinks())
	assert.Equal(t, 3, cfg.Workers())
	assert.Equal(t, []string{"*.node", "*.dll"}, cfg.Pack.Unpack)
	assert.Equal(t, []string{"assets"}, cfg.Pack.UnpackDir)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_EnvOverridesNoArchive(t *testing.T) {
	writeConfig(t, "[defaults]\nno_archive = true\n")

	t.Setenv("ASAR_NO_ARCHIVE", "0")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.NoArchive())

	t.Setenv("ASAR_NO_ARCHIVE", "1")
	assert.True(t, config.Config{}.NoArchive())
}

func TestLoad_InvalidTOML(t *testing.T) {
	writeConfig(t, "invalid [[[")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_UnknownKey(t *testing.T) {
	writeConfig(t, "[defaults]\nverfy = true\n")

	_, err := config.Load()
	assert.ErrorContains(t, err, "defaults.verfy")
}

func TestLogLevel_Invalid(t *testing.T) {
	writeConfig(t, "[defaults]\nlog_level = \"loud\"\n")

	cfg, err := config.Load()
	require.NoError(t, err)
	_, err = cfg.LogLevel()
	assert.ErrorContains(t, err, "loud")
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/asar/config.toml", config.Path())
}
