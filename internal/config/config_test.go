package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Server.Address)
	assert.Equal(t, "*", cfg.Server.AllowedOrigin)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 50000, cfg.Summary.MaxChars)
	assert.Equal(t, 60*time.Second, cfg.Summary.Timeout.Std())
	assert.Equal(t, ProviderClaude, cfg.Provider.Name)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Provider.Model)
	assert.Equal(t, CredentialFromRequest, cfg.Provider.CredentialSource)
	assert.Equal(t, 2000, cfg.Provider.MaxTokens)
	require.NotNil(t, cfg.Provider.Temperature)
	assert.InDelta(t, 0.3, *cfg.Provider.Temperature, 0.0001)
	assert.False(t, cfg.Summary.RequireSections)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"server": {"address": ":9000"},
		"upload": {"dir": "uploads", "max_bytes": 4194304, "orphan_ttl": "30m"},
		"provider": {"name": "OpenAI", "max_tokens": 1500},
		"database": {"driver": "sqlite3", "dsn": "data/runs.db"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("EVALSUM_SERVER_ADDRESS", ":9100")
	t.Setenv("EVALSUM_PROVIDER_API_KEY", "sk-from-env")
	t.Setenv("EVALSUM_SUMMARY_TIMEOUT", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Address)
	assert.Equal(t, filepath.Join(dir, "uploads"), cfg.Upload.Dir)
	assert.Equal(t, int64(4<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 30*time.Minute, cfg.Upload.OrphanTTL.Std())
	assert.Equal(t, ProviderOpenAI, cfg.Provider.Name)
	assert.Equal(t, "gpt-4", cfg.Provider.Model)
	assert.Equal(t, 1500, cfg.Provider.MaxTokens)
	assert.Equal(t, "sk-from-env", cfg.Provider.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Summary.Timeout.Std())
	assert.Equal(t, filepath.Join(dir, "data/runs.db"), cfg.Database.DSN)
}

func TestLoadKeepsExplicitZeroTemperature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"provider": {"temperature": 0}}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Provider.Temperature)
	assert.Zero(t, *cfg.Provider.Temperature)

	t.Setenv("EVALSUM_PROVIDER_TEMPERATURE", "0.7")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, *cfg.Provider.Temperature, 0.0001)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	cases := map[string]func(*Config){
		"provider":          func(c *Config) { c.Provider.Name = "llama" },
		"credential source": func(c *Config) { c.Provider.CredentialSource = "vault" },
		"driver":            func(c *Config) { c.Database.Driver = "postgres" },
		"rate limit":        func(c *Config) { c.RateLimit.Requests = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Std())
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
