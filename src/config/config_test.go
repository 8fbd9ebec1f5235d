package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, "kaniko", cfg.Build.Executor)
	assert.Equal(t, DefaultTimeout, cfg.Build.Timeout.Std())
	assert.Equal(t, []string{DefaultPlatform}, cfg.Build.EffectivePlatforms())
	assert.Empty(t, cfg.Path())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, ".dockwright.yml", `
registry:
  url: harbor.local
  project: iot
  credentials: HARBOR
build:
  platforms: linux/amd64, linux/arm64
  timeout: 45m
  cache_ttl: 6h
  max_parallel: 2
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, "harbor.local", cfg.Registry.URL)
	assert.Equal(t, "harbor", cfg.Registry.Provider, "unset keys keep defaults")
	assert.Equal(t, []string{"linux/amd64", "linux/arm64"}, cfg.Build.EffectivePlatforms())
	assert.Equal(t, 45*time.Minute, cfg.Build.Timeout.Std())
	assert.Equal(t, 6*time.Hour, cfg.Build.CacheTTL.Std())
	assert.Equal(t, 2, cfg.Build.MaxParallel)
	assert.True(t, cfg.Build.Push)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadYAMLPlatformList(t *testing.T) {
	path := writeConfig(t, "c.yaml", "build:\n  platforms:\n    - linux/amd64\n    - linux/arm/v7\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"linux/amd64", "linux/arm/v7"}, cfg.Build.EffectivePlatforms())
}

func TestLoadLegacyPlatformKey(t *testing.T) {
	path := writeConfig(t, "c.yml", "build:\n  platform: linux/arm64\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"linux/arm64"}, cfg.Build.EffectivePlatforms())

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	assert.Contains(t, warnings, "build.platform: deprecated, use build.platforms")
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, ".dockwright.toml", `
[registry]
url = "harbor.local"
provider = "oci"

[build]
executor = "buildx"
platforms = ["linux/amd64", "linux/arm64"]
timeout = "1h"
push = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "oci", cfg.Registry.Provider)
	assert.Equal(t, "buildx", cfg.Build.Executor)
	assert.Equal(t, time.Hour, cfg.Build.Timeout.Std())
	assert.False(t, cfg.Build.Push)
	assert.True(t, cfg.Build.Cache, "unset keys keep defaults")
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeConfig(t, "c.yml", "build:\n  timeout: forever\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forever")
}

func TestValidate(t *testing.T) {
	warnings, err := Validate(Defaults())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	cfg := Defaults()
	cfg.Registry.Provider = "quay"
	cfg.Registry.Lookup = "api"
	cfg.Build.TagStrategy = "nightly"
	cfg.Build.Platforms = StringList{"linux"}
	cfg.Build.MaxParallel = -1
	cfg.Log.Level = "chatty"
	cfg.Log.Format = "xml"

	_, err = Validate(cfg)
	require.Error(t, err)
	for _, key := range []string{"registry.provider", "registry.lookup", "build.tag_strategy", "build.platforms", "build.max_parallel", "log.level", "log.format"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Defaults()
	cfg.Registry.URL = "harbor.local"
	cfg.Registry.Insecure = true
	cfg.Build.Cache = false
	cfg.Build.CacheRepo = "harbor.local/cache"

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	assert.Len(t, warnings, 3)
}

func TestWriteExampleLoadsBack(t *testing.T) {
	for _, format := range []string{"yaml", "toml"} {
		var buf bytes.Buffer
		require.NoError(t, WriteExample(&buf, format))

		name := ".dockwright.yml"
		if format == "toml" {
			name = ".dockwright.toml"
		}
		cfg, err := Load(writeConfig(t, name, buf.String()))
		require.NoError(t, err, format)

		assert.Equal(t, "harbor.example.com", cfg.Registry.URL, format)
		assert.Equal(t, MultiArchPlatforms, cfg.Build.EffectivePlatforms(), format)
		assert.Equal(t, DefaultTimeout, cfg.Build.Timeout.Std(), format)

		_, err = Validate(cfg)
		assert.NoError(t, err, format)
	}

	assert.Error(t, WriteExample(&bytes.Buffer{}, "ini"))
}
