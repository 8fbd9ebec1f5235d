package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are tried in order when no config path is given.
var DefaultFiles = []string{".dockwright.yml", ".dockwright.yaml", ".dockwright.toml"}

// Config is the top-level dockwright configuration.
type Config struct {
	Registry RegistryConfig `yaml:"registry" toml:"registry"`
	Build    BuildConfig    `yaml:"build" toml:"build"`
	Source   SourceConfig   `yaml:"source" toml:"source"`
	Log      LogConfig      `yaml:"log" toml:"log"`

	// path is the file the config was read from; empty for defaults.
	path string
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string { return c.path }

// RegistryConfig describes where images and manifest lists are pushed.
type RegistryConfig struct {
	URL         string `yaml:"url" toml:"url"`                 // e.g. "harbor.example.com"
	Project     string `yaml:"project" toml:"project"`         // e.g. "iot"
	Provider    string `yaml:"provider" toml:"provider"`       // oci or harbor
	Credentials string `yaml:"credentials" toml:"credentials"` // env var prefix for auth (e.g., "HARBOR" → HARBOR_USER/HARBOR_PASS)
	Insecure    bool   `yaml:"insecure" toml:"insecure"`       // plain HTTP, skip TLS verification
	Lookup      string `yaml:"lookup" toml:"lookup"`           // manifest or api (harbor only)
}

// BuildConfig holds defaults for platform builds.
type BuildConfig struct {
	Executor     string   `yaml:"executor" toml:"executor"`           // kaniko or buildx
	ExecutorPath string   `yaml:"executor_path" toml:"executor_path"` // binary override
	ExtraArgs    []string `yaml:"extra_args" toml:"extra_args"`

	TagStrategy string     `yaml:"tag_strategy" toml:"tag_strategy"`
	Platforms   StringList `yaml:"platforms" toml:"platforms"`
	// Platform is the single-platform key of older configs. Ignored when
	// Platforms is set.
	Platform string `yaml:"platform,omitempty" toml:"platform,omitempty"`

	Timeout     Duration `yaml:"timeout" toml:"timeout"`           // per platform; 0 disables
	MaxParallel int      `yaml:"max_parallel" toml:"max_parallel"` // 0 = one worker per platform
	CancelGrace Duration `yaml:"cancel_grace" toml:"cancel_grace"`

	Cache     bool     `yaml:"cache" toml:"cache"`
	CacheTTL  Duration `yaml:"cache_ttl" toml:"cache_ttl"`
	CacheRepo string   `yaml:"cache_repo" toml:"cache_repo"`

	Push           bool   `yaml:"push" toml:"push"`
	WorkDir        string `yaml:"workdir" toml:"workdir"`
	IsolateContext bool   `yaml:"isolate_context" toml:"isolate_context"`
	KeepWorkDir    bool   `yaml:"keep_workdir" toml:"keep_workdir"`
}

// EffectivePlatforms returns the configured platform list, falling back to
// the legacy single platform key and then to DefaultPlatform.
func (b BuildConfig) EffectivePlatforms() []string {
	if len(b.Platforms) > 0 {
		return []string(b.Platforms)
	}
	if strings.TrimSpace(b.Platform) != "" {
		return []string{b.Platform}
	}
	return []string{DefaultPlatform}
}

// SourceConfig configures git sources.
type SourceConfig struct {
	Credentials string `yaml:"credentials" toml:"credentials"` // env var prefix for clone auth
	Depth       int    `yaml:"depth" toml:"depth"`             // 0 = shallow (1), negative = full history
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // trace, debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text or json
}

// Load reads configuration from a YAML or TOML file, chosen by extension.
// If path is empty, it tries DefaultFiles in the working directory.
// Returns sensible defaults if no file exists.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, candidate := range DefaultFiles {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return defaults(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}

	cfg := defaults()
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.path = path
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func defaults() *Config {
	return &Config{
		Registry: RegistryConfig{
			Provider: "harbor",
			Lookup:   "manifest",
		},
		Build: BuildConfig{
			Executor:       "kaniko",
			TagStrategy:    "version-build",
			Timeout:        Duration(DefaultTimeout),
			CancelGrace:    Duration(DefaultCancelGrace),
			Cache:          true,
			CacheTTL:       Duration(DefaultCacheTTL),
			Push:           true,
			IsolateContext: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Defaults returns the built-in configuration.
func Defaults() *Config { return defaults() }
