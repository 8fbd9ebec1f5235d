package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/dockwright/src/build"
)

var (
	validProviders = map[string]bool{"oci": true, "harbor": true}
	validLookups   = map[string]bool{"manifest": true, "api": true}
	validFormats   = map[string]bool{"text": true, "json": true}
)

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a hard error if the config is invalid.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	// ── Registry ──────────────────────────────────────────────────────────

	provider := strings.ToLower(cfg.Registry.Provider)
	if provider != "" && !validProviders[provider] {
		errs = append(errs, fmt.Sprintf("registry.provider: unknown provider %q (supported: oci, harbor)", cfg.Registry.Provider))
	}
	lookup := strings.ToLower(cfg.Registry.Lookup)
	if lookup != "" && !validLookups[lookup] {
		errs = append(errs, fmt.Sprintf("registry.lookup: unknown lookup %q (supported: manifest, api)", cfg.Registry.Lookup))
	}
	if lookup == "api" && provider != "harbor" {
		errs = append(errs, "registry.lookup: api lookups require provider harbor")
	}
	if cfg.Registry.Insecure {
		warnings = append(warnings, "registry.insecure: TLS verification is disabled")
	}
	if cfg.Registry.URL != "" && cfg.Registry.Credentials == "" {
		warnings = append(warnings, "registry.credentials: not set, falling back to the docker config keychain")
	}

	// ── Build ─────────────────────────────────────────────────────────────

	if _, err := build.ParseTagStrategy(cfg.Build.TagStrategy); err != nil {
		errs = append(errs, fmt.Sprintf("build.tag_strategy: %v", unwrapKind(err)))
	}
	if len(cfg.Build.Platforms) > 0 && cfg.Build.Platform != "" {
		warnings = append(warnings, "build.platform: ignored because build.platforms is set")
	} else if cfg.Build.Platform != "" {
		warnings = append(warnings, "build.platform: deprecated, use build.platforms")
	}
	if _, err := build.ParsePlatforms(cfg.Build.EffectivePlatforms()); err != nil {
		errs = append(errs, fmt.Sprintf("build.platforms: %v", unwrapKind(err)))
	}
	if cfg.Build.Timeout < 0 {
		errs = append(errs, "build.timeout: must not be negative")
	}
	if cfg.Build.CancelGrace < 0 {
		errs = append(errs, "build.cancel_grace: must not be negative")
	}
	if cfg.Build.MaxParallel < 0 {
		errs = append(errs, fmt.Sprintf("build.max_parallel: must be >= 0, got %d", cfg.Build.MaxParallel))
	}
	if cfg.Build.CacheTTL < 0 {
		errs = append(errs, "build.cache_ttl: must not be negative")
	}
	if !cfg.Build.Cache && cfg.Build.CacheRepo != "" {
		warnings = append(warnings, "build.cache_repo: ignored because build.cache is false")
	}
	if !cfg.Build.IsolateContext {
		warnings = append(warnings, "build.isolate_context: workers share one build context")
	}

	// ── Log ───────────────────────────────────────────────────────────────

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level: %v", err))
	}
	if !validFormats[strings.ToLower(cfg.Log.Format)] {
		errs = append(errs, fmt.Sprintf("log.format: unknown format %q (supported: text, json)", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return warnings, nil
}

// unwrapKind drops the error kind prefix, which means nothing in a config file.
func unwrapKind(err error) error {
	if be, ok := err.(*build.Error); ok && be.Err != nil {
		return be.Err
	}
	return err
}
