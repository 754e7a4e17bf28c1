package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedulerd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("licenses: \"matlab:10\"\n"), 0o600))

	cfg, err := LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, "matlab:10", cfg.Licenses)
	assert.Equal(t, "127.0.0.1:9100", cfg.ListenAddr)
	assert.Equal(t, 100, cfg.Scheduling.DefaultQueueDepth)
}

func TestLoadServerRejectsMissingFile(t *testing.T) {
	_, err := LoadServer(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
