package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "community_solar.db", cfg.Store.Path)
	assert.Equal(t, 1000, cfg.Store.CommitEvery)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://solar.googleapis.com/v1", cfg.Solar.BaseURL)
	assert.Equal(t, "HIGH", cfg.Solar.RequiredQuality)
	assert.Equal(t, 200*time.Millisecond, cfg.Solar.MinInterval)
	assert.Equal(t, 90*time.Second, cfg.Solar.ThrottleCooldown)
	assert.Equal(t, 30*time.Second, cfg.Solar.Timeout)
	assert.Equal(t, 0, cfg.Solar.MaxThrottleRetries)
	assert.Equal(t, "google_api_key.txt", cfg.Solar.APIKeyFile)
	assert.Equal(t, 5*time.Second, cfg.Sources.PollInterval)
	assert.Contains(t, cfg.Sources.LocationsURL, "hub.arcgis.com")
	assert.Equal(t, "cejst_data.csv", cfg.Sources.CEJST)
	assert.Equal(t, "property_codes.csv", cfg.Sources.PropertyCodes)
	assert.Equal(t, 100, cfg.Enrich.Limit)
	assert.Equal(t, "6", cfg.Enrich.ClassPrefix)
	assert.False(t, cfg.Enrich.IncludeUnchecked)
	assert.Equal(t, 5*time.Minute, cfg.Monitoring.CheckInterval)
	assert.InDelta(t, 0.05, cfg.Monitoring.RowFailureThreshold, 1e-9)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  path: /tmp/solar.db
log:
  level: debug
  format: console
server:
  port: 9090
solar:
  min_interval: 1s
  throttle_cooldown: 2m
enrich:
  limit: 25
  include_unchecked: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/solar.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Solar.MinInterval)
	assert.Equal(t, 2*time.Minute, cfg.Solar.ThrottleCooldown)
	assert.Equal(t, 25, cfg.Enrich.Limit)
	assert.True(t, cfg.Enrich.IncludeUnchecked)
	// Defaults still apply for unset values
	assert.Equal(t, "6", cfg.Enrich.ClassPrefix)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  path: file.db
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SOLAR_STORE_PATH", "env.db")
	t.Setenv("SOLAR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "env.db", cfg.Store.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SOLAR_SERVER_PORT", "3000")
	t.Setenv("SOLAR_SOLAR_API_KEY", "env-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.Solar.APIKey)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestResolveAPIKey_Direct(t *testing.T) {
	cfg := &Config{Solar: SolarConfig{APIKey: "abc", APIKeyFile: "missing.txt"}}

	key, err := cfg.ResolveAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "abc", key)
}

func TestResolveAPIKey_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "google_api_key.txt")
	require.NoError(t, os.WriteFile(path, []byte("  from-file\n"), 0600))

	cfg := &Config{Solar: SolarConfig{APIKeyFile: path}}
	key, err := cfg.ResolveAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "from-file", key)
}

func TestResolveAPIKey_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0600))

	tests := []struct {
		name string
		file string
		want string
	}{
		{"no source", "", "solar.api_key is required"},
		{"missing file", filepath.Join(dir, "nope.txt"), "read api key file"},
		{"empty file", empty, "is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Solar: SolarConfig{APIKeyFile: tt.file}}
			_, err := cfg.ResolveAPIKey()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Path = "community_solar.db"
	cfg.Store.CommitEvery = 1000
	cfg.Solar.APIKey = "key"
	cfg.Solar.BaseURL = "https://solar.googleapis.com/v1"
	cfg.Solar.MinInterval = 200 * time.Millisecond
	cfg.Solar.ThrottleCooldown = 90 * time.Second
	cfg.Sources.PollInterval = 5 * time.Second
	cfg.Enrich.Limit = 100
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateEnrich_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("enrich"))
}

func TestValidateEnrich_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Solar.APIKey = ""
	cfg.Solar.BaseURL = ""
	cfg.Enrich.Limit = 0

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solar.api_key or solar.api_key_file is required")
	assert.Contains(t, err.Error(), "solar.base_url is required")
	assert.Contains(t, err.Error(), "enrich.limit must be >= 1")
}

func TestValidateEnrich_NegativeRetries(t *testing.T) {
	cfg := validDefaults()
	cfg.Solar.MaxThrottleRetries = -1

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_throttle_retries")
}

func TestValidateStore_MissingPath(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Path = ""

	err := cfg.Validate("db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.path is required")
}

func TestValidateLoad_PollInterval(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("load"))

	cfg.Sources.PollInterval = 0
	err := cfg.Validate("load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_Threshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.RowFailureThreshold = 1.5

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row_failure_threshold")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
