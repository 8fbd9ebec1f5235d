// Package registry talks to the container registry that receives the
// per-platform images and the composed manifest lists. Publishing always goes
// through the OCI distribution API; existence lookups can alternatively use a
// vendor REST API (Harbor) when manifest HEAD requests are not permitted for
// the build account.
package registry

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Lookup answers whether a fully qualified image reference resolves.
type Lookup interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

// Publisher pushes a multi-platform index under target.
type Publisher interface {
	PublishIndex(ctx context.Context, target string, members []Member) (digest string, err error)
}

// Registry is the interface every registry provider implements.
type Registry interface {
	Lookup
	Publisher

	// Provider returns the registry vendor name.
	Provider() string

	// Platforms lists the members of a published index.
	Platforms(ctx context.Context, ref string) ([]IndexEntry, error)
}

// Member is one platform image of a manifest list.
type Member struct {
	Ref          string // per-arch reference, e.g. harbor.local/iot/app:1.0-amd64
	OS           string
	Architecture string
	Variant      string
}

// IndexEntry describes a published index member.
type IndexEntry struct {
	Platform string
	Digest   string
	Size     int64
}

// Options configures NewRegistry.
type Options struct {
	Provider         string // oci (default) or harbor
	URL              string // registry host, used by REST lookups
	CredentialPrefix string // env prefix: PREFIX_USER / PREFIX_PASS
	Insecure         bool   // plain HTTP and unverified TLS
	Lookup           string // manifest (default) or api; api requires the harbor provider
}

// NormalizeProvider maps provider aliases to their canonical names.
func NormalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	switch p {
	case "", "distribution", "registry":
		return "oci"
	default:
		return p
	}
}

// NewRegistry creates a registry client for the given provider.
// Credentials are resolved from environment variables using the prefix:
//
//	prefix: "HARBOR" → HARBOR_USER / HARBOR_PASS
//	prefix: "CI_REGISTRY" → CI_REGISTRY_USER / CI_REGISTRY_PASS
//
// Without credentials the docker config keychain is used.
func NewRegistry(opts Options) (Registry, error) {
	provider := NormalizeProvider(opts.Provider)
	user, pass := resolveCredentials(opts.CredentialPrefix)
	oci := NewOCI(user, pass, opts.Insecure)

	lookup := strings.ToLower(strings.TrimSpace(opts.Lookup))
	switch lookup {
	case "", "manifest", "api":
	default:
		return nil, fmt.Errorf("registry: unsupported lookup %q (valid: manifest, api)", opts.Lookup)
	}

	switch provider {
	case "oci":
		if lookup == "api" {
			return nil, fmt.Errorf("registry: lookup \"api\" requires the harbor provider")
		}
		return oci, nil
	case "harbor":
		h := NewHarbor(opts.URL, user, pass, oci)
		h.manifestLookup = lookup != "api"
		return h, nil
	default:
		return nil, fmt.Errorf("registry: unsupported provider %q (valid: oci, harbor)", opts.Provider)
	}
}

// resolveCredentials reads USER and PASS from env vars using the
// configured prefix. Returns empty strings if no prefix or vars are unset.
func resolveCredentials(prefix string) (user, pass string) {
	if prefix == "" {
		return "", ""
	}
	p := strings.ToUpper(prefix)
	return os.Getenv(p + "_USER"), os.Getenv(p + "_PASS")
}
