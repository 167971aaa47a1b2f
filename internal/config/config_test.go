package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load caches through sync.Once, so the whole surface is exercised in one
// test: file values win, untouched keys keep their defaults.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
firestore:
  project_id: txnflow-test
gcs:
  bucket: txnflow-uploads
oracle:
  enabled: false
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "txnflow-test", cfg.Firestore.ProjectID)
	assert.Equal(t, "txnflow-uploads", cfg.GCS.Bucket)
	assert.False(t, cfg.Oracle.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Defaults fill everything the file leaves out.
	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, "gemini-2.5-flash", cfg.Oracle.Model)
	assert.InDelta(t, 0.9, cfg.Dedup.AutoRejectThreshold, 0.001)
	assert.InDelta(t, 0.5, cfg.Dedup.AmbiguousThreshold, 0.001)
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, 3, cfg.Jobs.MaxRetries)

	assert.Same(t, cfg, Get())
}
