package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThatDefaultsAreUsedWhenNothingIsConfigured(t *testing.T) {
	t.Setenv("ENERGY_CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5002", cfg.Service.Port)
	assert.Equal(t, "/api/v1", cfg.Service.APIPrefix)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL())
}

func TestThatEnvironmentOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy.toml")
	contents := `
[service]
port = "8080"
timezone = "Europe/Stockholm"

[database]
driver = "mysql"
host = "db.local"

[redis]
addr = "localhost:6379"
ttl_seconds = 30
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	t.Setenv("ENERGY_CONFIG_FILE", path)
	t.Setenv("DB_HOST", "db.override")
	t.Setenv("CACHE_TTL_SECONDS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Service.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10*time.Second, cfg.CacheTTL())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Stockholm", loc.String())
}

func TestThatLoadFailsOnUnknownTimezone(t *testing.T) {
	t.Setenv("ENERGY_CONFIG_FILE", "")
	t.Setenv("ENERGY_TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	assert.Error(t, err)
}

func TestThatLoadFailsOnNonNumericCacheTTL(t *testing.T) {
	t.Setenv("ENERGY_CONFIG_FILE", "")
	t.Setenv("CACHE_TTL_SECONDS", "soon")

	_, err := Load()
	assert.Error(t, err)
}
