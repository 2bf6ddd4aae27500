package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sona-picture-processing/internal/background"
	"sona-picture-processing/internal/stitching"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sona.yaml")
	data := `
history_limit: 3
journal:
  driver: none
compression:
  jpeg_quality: 60
background:
  method: kmeans
  transparent: true
stitching:
  mode: scans
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.HistoryLimit)
	assert.Equal(t, "none", cfg.Journal.Driver)
	assert.Equal(t, 60, cfg.Compression.Quality)
	assert.Equal(t, 0.25, cfg.Compression.KeepFraction)
	assert.Equal(t, background.KMeans, cfg.Background.Method)
	assert.True(t, cfg.Background.Transparent)
	assert.Equal(t, 200, cfg.Background.WhiteLevel)
	assert.Equal(t, stitching.Scans, cfg.Stitching.Mode)
	assert.Equal(t, 3.0, cfg.Restoration.Radius)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history_limit: 0\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "history_limit")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sona.yaml")
	cfg := Default()
	cfg.Workers = 2
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
