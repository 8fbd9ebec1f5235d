package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const exampleYAML = `# dockwright configuration
registry:
  url: harbor.example.com
  project: library
  provider: harbor          # oci or harbor
  credentials: HARBOR       # reads HARBOR_USER / HARBOR_PASS
  lookup: manifest          # manifest, or api for the Harbor artifact API
  insecure: false

build:
  executor: kaniko          # kaniko or buildx
  tag_strategy: version-build
  # single platform: linux/amd64, multi-arch: [linux/amd64, linux/arm64]
  platforms: [linux/amd64, linux/arm64]
  timeout: 30m
  max_parallel: 0           # 0 runs every platform at once
  cancel_grace: 10s
  cache: true
  cache_ttl: 24h
  push: true
  isolate_context: true

source:
  credentials: GIT          # reads GIT_USER / GIT_PASS for private repositories
  depth: 0

log:
  level: info
  format: text
`

// Example returns the configuration written by "config init".
func Example() *Config {
	cfg := defaults()
	cfg.Registry.URL = "harbor.example.com"
	cfg.Registry.Project = "library"
	cfg.Registry.Credentials = "HARBOR"
	cfg.Build.Platforms = StringList(MultiArchPlatforms)
	cfg.Source.Credentials = "GIT"
	return cfg
}

// WriteExample writes an example configuration in the given format
// ("yaml" or "toml").
func WriteExample(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
		_, err := io.WriteString(w, exampleYAML)
		return err
	case "toml":
		_, err := io.WriteString(w, "# dockwright configuration\n")
		if err != nil {
			return err
		}
		return toml.NewEncoder(w).Encode(Example())
	default:
		return fmt.Errorf("unknown config format %q (supported: yaml, toml)", format)
	}
}
