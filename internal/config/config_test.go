package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvBaseURL, EnvSnapshotDSN, EnvSnapshotName, EnvSeedBoundary,
		EnvPageSize, EnvTimeout, EnvAddr, EnvWatchSnapshot,
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "https://jsonplaceholder.typicode.com/users", cfg.BaseURL)
	assert.Equal(t, "userManagementData", cfg.SnapshotName)
	assert.Equal(t, 10, cfg.SeedBoundary)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.True(t, cfg.WatchSnapshot)
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "recordmirror.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
base_url: http://from-file.test/users
page_size: 7
timeout: 3s
addr: ":9000"
watch_snapshot: false
`), 0o644))
	dotEnv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotEnv, []byte("RECORDMIRROR_PAGE_SIZE=8\nRECORDMIRROR_SNAPSHOT_NAME=fromdotenv\n"), 0o644))
	t.Setenv(EnvAddr, ":9100")

	cfg, err := Load(file, dotEnv)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file.test/users", cfg.BaseURL)
	assert.Equal(t, 8, cfg.PageSize)
	assert.Equal(t, "fromdotenv", cfg.SnapshotName)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.False(t, cfg.WatchSnapshot)
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	dotEnv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotEnv, []byte("RECORDMIRROR_SEED_BOUNDARY=50\n"), 0o644))
	t.Setenv(EnvSeedBoundary, "20")

	cfg, err := Load("", dotEnv)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.SeedBoundary)
}

func TestLoadIgnoresMissingDotEnvButNotMissingFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load("", filepath.Join(dir, "absent.env"))
	require.NoError(t, err)

	_, err = Load(filepath.Join(dir, "absent.yaml"), "")
	assert.Error(t, err)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPageSize, "many")
	t.Setenv(EnvTimeout, "soon")
	t.Setenv(EnvWatchSnapshot, "perhaps")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.True(t, cfg.WatchSnapshot)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.BaseURL = "not a url"
	cfg.PageSize = 0
	cfg.Timeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
	assert.Contains(t, err.Error(), "page_size")
	assert.Contains(t, err.Error(), "timeout")

	clearEnv(t)
	t.Setenv(EnvSeedBoundary, "0")
	_, err = Load("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed_boundary")
}
