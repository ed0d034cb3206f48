package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/dashboard-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, time.Hour, c.GetAccessTokenExpiry())
	require.Equal(t, 2*time.Hour, c.GetRefreshTokenExpiry())
	require.Equal(t, time.Minute, c.GetRefreshLead())
	require.Equal(t, time.Second, c.GetLoginLatency())
	require.Equal(t, 500*time.Millisecond, c.GetLogoutLatency())
	require.Equal(t, uint(3), c.GetRefreshAttempts())
	require.Equal(t, config.StorageFile, c.GetStorageDriver())
	require.Equal(t, "dashauth", c.GetStorageNamespace())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashauth.yaml")
	err := os.WriteFile(path, []byte(`
env: PROD
token:
  access_ttl: 30m
  refresh_ttl: 90m
storage:
  driver: redis
  redis_addr: redis:6379
`), 0o600)
	require.NoError(t, err)

	t.Setenv("DASHAUTH_TOKEN_REFRESH_TTL", "3h")
	t.Setenv("DASHAUTH_LATENCY_LOGIN", "0s")
	t.Setenv("DASHAUTH_APP_NAME", "Ops Console")

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, 30*time.Minute, c.GetAccessTokenExpiry())
	require.Equal(t, 3*time.Hour, c.GetRefreshTokenExpiry(), "env overrides file")
	require.Equal(t, time.Duration(0), c.GetLoginLatency())
	require.Equal(t, "Ops Console", c.GetAppName())
	require.Equal(t, config.StorageRedis, c.GetStorageDriver())
	require.Equal(t, "redis:6379", c.GetRedisAddr())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvWithoutFile(t *testing.T) {
	t.Setenv("DASHAUTH_STORAGE_DRIVER", "memory")
	t.Setenv("DASHAUTH_REFRESH_ATTEMPTS", "5")

	c, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.StorageMemory, c.GetStorageDriver())
	require.Equal(t, uint(5), c.GetRefreshAttempts())
}

func TestLoad_MalformedEnv(t *testing.T) {
	t.Setenv("DASHAUTH_TOKEN_ACCESS_TTL", "soon")

	_, err := config.Load("")
	require.Error(t, err)
}
