package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "plos", cfg.DefaultProvider)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SCHOLAR_FLUX_LOG_LEVEL", "debug")
	t.Setenv("SCHOLAR_FLUX_DEFAULT_PROVIDER", "crossref")
	t.Setenv("SCHOLAR_FLUX_CACHE_DIRECTORY", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "crossref", cfg.DefaultProvider)
}

func TestLoad_YAMLOverridesProviders(t *testing.T) {
	dir := t.TempDir()
	yamlPath := dir + "/scholarflux.yaml"
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
log_level: warn
providers:
  plos:
    records_per_page: 50
`), 0o644))

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	require.Contains(t, cfg.ProviderConfigs, "plos")
	assert.Equal(t, 50, cfg.ProviderConfigs["plos"].RecordsPerPage)
}

func TestCollectProviderKeys(t *testing.T) {
	t.Setenv("PLOS_API_KEY", "abc123")
	keys := collectProviderKeys()
	assert.Equal(t, "abc123", keys["plos"])
}
