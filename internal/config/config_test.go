package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:8000", cfg.BaseURL)
	assert.Equal(t, 10, cfg.DefaultTrials)
	assert.Equal(t, 10000, cfg.TimeLimitMS)
	assert.True(t, cfg.Narration)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://clinic.example.org\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://clinic.example.org", cfg.BaseURL)
	assert.Equal(t, 10, cfg.DefaultTrials, "zero-value trials falls back to the default")
	assert.Equal(t, 10000, cfg.TimeLimitMS)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [oops\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("THERAPYCTL_BASE_URL", "https://override.example.org")
	t.Setenv("THERAPYCTL_CHILD", "7")
	t.Setenv("THERAPYCTL_NO_NARRATION", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.org", cfg.BaseURL)
	assert.Equal(t, "7", cfg.SelectedChild)
	assert.False(t, cfg.Narration)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	want := DefaultConfig()
	want.BaseURL = "https://clinic.example.org"
	want.AccessToken = "acc-1"
	want.RefreshToken = "ref-1"
	want.SelectedChild = "12"
	want.Theme = "midnight"
	require.NoError(t, Save(want, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "token file must not be world-readable")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_RequiresPath(t *testing.T) {
	assert.Error(t, Save(DefaultConfig(), ""))
}
