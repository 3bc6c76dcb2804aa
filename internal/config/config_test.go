package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pebblevault/pebblevault/internal/vault"
)

func TestLoadWithoutPathReturnsDefault(t *testing.T) {
	os.Unsetenv("PEBBLEVAULT_CONFIG")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Store.Kind)
	assert.True(t, cfg.Vault.LazyLoadRegions)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pebblevault.yaml")
	yamlBody := `
store:
  kind: mongo
  dsn: mongodb://localhost:27017/pebblevault
blob:
  kind: badger
  path: /var/lib/pebblevault/blobs
vault:
  lazy_load_regions: false
server:
  rest_port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.Store.Kind)
	assert.Equal(t, "badger", cfg.Blob.Kind)
	assert.False(t, cfg.Vault.LazyLoadRegions)
	assert.Equal(t, 9090, cfg.Server.GetRESTPort())
}

func TestToVaultConfigMapsStoreKinds(t *testing.T) {
	cfg := Default()
	cfg.Store.Kind = "mongo"
	cfg.Blob.Kind = "badger"

	vc := cfg.ToVaultConfig()
	assert.Equal(t, vault.BackingStoreMongo, vc.BackingStore)
	assert.Equal(t, vault.BlobStoreBadger, vc.BlobStore)
}

func TestServerConfigPortFallsBackToEnv(t *testing.T) {
	os.Setenv("PEBBLEVAULT_REST_PORT", "9999")
	defer os.Unsetenv("PEBBLEVAULT_REST_PORT")

	s := ServerConfig{}
	assert.Equal(t, 9999, s.GetRESTPort())
}
