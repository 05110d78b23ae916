// Package config resolves process-wide aggregator configuration: log
// level, default provider, cache directory, and per-provider API keys.
// The community path runs with zero config (sensible defaults); an
// optional YAML file layers provider-registry overrides underneath the
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the resolved process configuration.
type Config struct {
	LogLevel        string                    `yaml:"log_level"`
	DefaultProvider string                    `yaml:"default_provider"`
	CacheDirectory  string                    `yaml:"cache_directory"`
	ProviderKeys    map[string]string         `yaml:"-"`
	ProviderConfigs map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig is a YAML-overridable subset of a provider's registry
// entry; zero values mean "leave the built-in default".
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	RecordsPerPage int    `yaml:"records_per_page"`
	RequestDelayMS int     `yaml:"request_delay_ms"`
}

// DefaultConfig returns the zero-config defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        "info",
		DefaultProvider: "plos",
		CacheDirectory:  "",
		ProviderKeys:    map[string]string{},
		ProviderConfigs: map[string]ProviderConfig{},
	}
}

// Load resolves configuration from environment variables first, then
// layers an optional YAML file's provider overrides underneath.
//
// Priority for scalar fields: explicit env var > YAML file > default.
// Priority for CacheDirectory: env var > YAML file > the fallback chain
// of resolveCacheDirectory. Load takes no argument that overrides the
// cache directory.
func Load(yamlPath string) (*Config, error) {
	cfg := DefaultConfig()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", yamlPath, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", yamlPath, err)
		}
		if fileCfg.LogLevel != "" {
			cfg.LogLevel = fileCfg.LogLevel
		}
		if fileCfg.DefaultProvider != "" {
			cfg.DefaultProvider = fileCfg.DefaultProvider
		}
		if fileCfg.CacheDirectory != "" {
			cfg.CacheDirectory = fileCfg.CacheDirectory
		}
		if len(fileCfg.ProviderConfigs) > 0 {
			cfg.ProviderConfigs = fileCfg.ProviderConfigs
		}
	}

	if v := os.Getenv("SCHOLAR_FLUX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SCHOLAR_FLUX_DEFAULT_PROVIDER"); v != "" {
		cfg.DefaultProvider = v
	}
	if v := os.Getenv("SCHOLAR_FLUX_CACHE_DIRECTORY"); v != "" {
		cfg.CacheDirectory = v
	}
	if cfg.CacheDirectory == "" {
		cfg.CacheDirectory = resolveCacheDirectory()
	}

	cfg.ProviderKeys = collectProviderKeys()

	return cfg, nil
}

// ResolvePath finds an optional aggregator YAML config file.
// Priority: SCHOLAR_FLUX_CONFIG env var > ./scholarflux.yaml > "" (no config).
func ResolvePath() string {
	if p := os.Getenv("SCHOLAR_FLUX_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("scholarflux.yaml"); err == nil {
		return "scholarflux.yaml"
	}
	return ""
}

// resolveCacheDirectory is the fallback used when neither the env var
// nor the YAML file set a cache directory (both checked by the
// caller): <user cache dir>/scholar_flux if writable >
// $HOME/.scholar_flux > ./.scholar_flux. No package data directory is
// tried.
func resolveCacheDirectory() string {
	if dir, err := os.UserCacheDir(); err == nil {
		candidate := filepath.Join(dir, "scholar_flux")
		if dirWritable(candidate) {
			return candidate
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".scholar_flux")
	}
	return ".scholar_flux"
}

func dirWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".write_probe")
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}

// collectProviderKeys scans the environment for "<PROVIDER>_API_KEY"
// variables and returns a normalized-lowercase-provider-name -> key map.
func collectProviderKeys() map[string]string {
	keys := map[string]string{}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		if !strings.HasSuffix(name, "_API_KEY") {
			continue
		}
		provider := strings.ToLower(strings.TrimSuffix(name, "_API_KEY"))
		if provider == "" {
			continue
		}
		keys[provider] = value
	}
	return keys
}
