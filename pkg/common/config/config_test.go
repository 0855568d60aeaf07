package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("DefaultsWithEnvMasterKey", func(t *testing.T) {
		t.Setenv("GATEWAY_ENCRYPTION_MASTER_KEY", "env-master-key")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "env-master-key", cfg.Encryption.MasterKey)
		assert.Equal(t, 10000, cfg.SQL.MaxResultRows)
		assert.Equal(t, 30000, cfg.SQL.QueryTimeoutMs)
		assert.Equal(t, 5, cfg.SQL.MaxPoolSize)
		assert.Equal(t, 60*time.Second, cfg.Sandbox.RequestTimeout)
	})

	t.Run("MissingMasterKeyFails", func(t *testing.T) {
		os.Unsetenv("GATEWAY_ENCRYPTION_MASTER_KEY")

		_, err := Load("")
		assert.ErrorContains(t, err, "master_key")
	})

	t.Run("ConfigFileOverridesDefaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gateway.yaml")
		content := []byte(`
encryption:
  master_key: file-master-key
sql:
  max_result_rows: 500
sandbox:
  endpoint: http://sandbox.internal:8090
`)
		require.NoError(t, os.WriteFile(path, content, 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "file-master-key", cfg.Encryption.MasterKey)
		assert.Equal(t, 500, cfg.SQL.MaxResultRows)
		assert.Equal(t, "http://sandbox.internal:8090", cfg.Sandbox.Endpoint)
		// Untouched values keep their defaults
		assert.Equal(t, 30000, cfg.SQL.QueryTimeoutMs)
	})

	t.Run("MissingConfigFileFails", func(t *testing.T) {
		t.Setenv("GATEWAY_ENCRYPTION_MASTER_KEY", "env-master-key")

		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
