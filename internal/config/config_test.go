package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 8, cfg.Sync.Concurrency)
	require.Equal(t, StoreMemory, cfg.Store.Backend)
	require.Equal(t, 15*time.Second, cfg.HTTPTimeout())
}

func TestLoadTenantsFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
server:
  port: 9090
store:
  backend: redis
  redis_url: redis://localhost:6379/0
tenants:
  acme:
    base_url: https://partner.example.com
    client_id: id-1
    client_secret: sec-1
    username: svc
    password: pwd
  globex:
    base_url: https://partner.example.com
    client_id: id-2
    client_secret: sec-2
    username: svc2
    password: pwd2
    detail_key: slug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Len(t, cfg.Tenants, 2)
	require.Equal(t, "sku", cfg.Tenants["acme"].DetailKey)
	require.Equal(t, "slug", cfg.Tenants["globex"].DetailKey)
}

func TestLoadRejectsIncompleteTenant(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
tenants:
  acme:
    base_url: https://partner.example.com
    client_id: id-1
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tenants.acme")
}

func TestValidateStoreBackend(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Store.Backend = "cassandra"
	require.Error(t, cfg.Validate())

	cfg.Store.Backend = StoreRedis
	cfg.Store.RedisURL = ""
	require.Error(t, cfg.Validate())

	cfg.Store.Backend = StorePostgres
	cfg.Store.DSN = ""
	require.Error(t, cfg.Validate())
}

func TestValidateAuthRequiresKey(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Auth.Enabled = true
	require.Error(t, cfg.Validate())

	cfg.Auth.APIKey = "k"
	require.NoError(t, cfg.Validate())
}

func TestValidateDetailKey(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Tenants = map[string]TenantConfig{
		"acme": {
			BaseURL:      "https://partner.example.com",
			ClientID:     "id",
			ClientSecret: "sec",
			Username:     "u",
			Password:     "p",
			DetailKey:    "name",
		},
	}
	require.Error(t, cfg.Validate())
}
