package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8380, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Analysis.AnomalyWindow)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packsight.ini")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9000

[analysis]
anomaly_window = 64
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Analysis.AnomalyWindow)
	// Untouched keys keep their defaults.
	assert.Equal(t, 2000, cfg.Analysis.DownsampleTarget)
	assert.Equal(t, 20, cfg.Server.RateBurst)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packsight.ini")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = -1\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
