package registry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

// OCI implements Registry against any OCI distribution endpoint.
type OCI struct {
	auth     authn.Authenticator
	keychain authn.Keychain
	insecure bool
}

// NewOCI creates a client. Empty credentials fall back to the default keychain
// (docker config, credential helpers).
func NewOCI(user, pass string, insecure bool) *OCI {
	o := &OCI{insecure: insecure}
	if user != "" && pass != "" {
		o.auth = authn.FromConfig(authn.AuthConfig{Username: user, Password: pass})
	} else {
		o.keychain = authn.DefaultKeychain
	}
	return o
}

func (o *OCI) Provider() string { return "oci" }

func (o *OCI) parse(ref string) (name.Reference, error) {
	var opts []name.Option
	if o.insecure {
		opts = append(opts, name.Insecure)
	}
	r, err := name.ParseReference(ref, opts...)
	if err != nil {
		return nil, fmt.Errorf("registry: parsing reference %q: %w", ref, err)
	}
	return r, nil
}

func (o *OCI) options(ctx context.Context) []remote.Option {
	opts := []remote.Option{remote.WithContext(ctx)}
	if o.auth != nil {
		opts = append(opts, remote.WithAuth(o.auth))
	} else {
		opts = append(opts, remote.WithAuthFromKeychain(o.keychain))
	}
	if o.insecure {
		tr := remote.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via registry.insecure
		opts = append(opts, remote.WithTransport(tr))
	}
	return opts
}

// Exists issues a manifest HEAD. A 404 means absent; any other failure is an error.
func (o *OCI) Exists(ctx context.Context, ref string) (bool, error) {
	r, err := o.parse(ref)
	if err != nil {
		return false, err
	}
	if _, err := remote.Head(r, o.options(ctx)...); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("registry: checking %s: %w", ref, err)
	}
	return true, nil
}

// PublishIndex pushes an index referencing every member with its platform
// annotation. The index uses the Docker manifest list media type when all
// members are Docker schema 2 images, the OCI image index type otherwise.
func (o *OCI) PublishIndex(ctx context.Context, target string, members []Member) (string, error) {
	if len(members) == 0 {
		return "", fmt.Errorf("registry: index %s has no members", target)
	}
	targetRef, err := o.parse(target)
	if err != nil {
		return "", err
	}

	var adds []mutate.IndexAddendum
	allDocker := true
	for _, m := range members {
		r, err := o.parse(m.Ref)
		if err != nil {
			return "", err
		}
		desc, err := remote.Get(r, o.options(ctx)...)
		if err != nil {
			return "", fmt.Errorf("registry: fetching member %s: %w", m.Ref, err)
		}

		var add mutate.Appendable
		if desc.MediaType.IsIndex() {
			add, err = desc.ImageIndex()
		} else {
			add, err = desc.Image()
		}
		if err != nil {
			return "", fmt.Errorf("registry: reading member %s: %w", m.Ref, err)
		}
		if desc.MediaType != types.DockerManifestSchema2 {
			allDocker = false
		}

		adds = append(adds, mutate.IndexAddendum{
			Add: add,
			Descriptor: v1.Descriptor{
				Platform: &v1.Platform{OS: m.OS, Architecture: m.Architecture, Variant: m.Variant},
			},
		})
	}

	mediaType := types.OCIImageIndex
	if allDocker {
		mediaType = types.DockerManifestList
	}
	idx := mutate.AppendManifests(mutate.IndexMediaType(empty.Index, mediaType), adds...)

	if err := remote.WriteIndex(targetRef, idx, o.options(ctx)...); err != nil {
		return "", fmt.Errorf("registry: pushing index %s: %w", target, err)
	}
	digest, err := idx.Digest()
	if err != nil {
		return "", fmt.Errorf("registry: computing index digest: %w", err)
	}
	return digest.String(), nil
}

// Platforms lists the members of a published index in manifest order.
func (o *OCI) Platforms(ctx context.Context, ref string) ([]IndexEntry, error) {
	r, err := o.parse(ref)
	if err != nil {
		return nil, err
	}
	idx, err := remote.Index(r, o.options(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("registry: fetching index %s: %w", ref, err)
	}
	manifest, err := idx.IndexManifest()
	if err != nil {
		return nil, fmt.Errorf("registry: decoding index %s: %w", ref, err)
	}

	entries := make([]IndexEntry, 0, len(manifest.Manifests))
	for _, d := range manifest.Manifests {
		entries = append(entries, IndexEntry{
			Platform: formatPlatform(d.Platform),
			Digest:   d.Digest.String(),
			Size:     d.Size,
		})
	}
	return entries, nil
}

func formatPlatform(p *v1.Platform) string {
	if p == nil {
		return "unknown"
	}
	parts := []string{p.OS, p.Architecture}
	if p.Variant != "" {
		parts = append(parts, p.Variant)
	}
	return strings.Join(parts, "/")
}

func isNotFound(err error) bool {
	var terr *transport.Error
	return errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound
}
