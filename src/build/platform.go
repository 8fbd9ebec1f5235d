package build

import (
	"strings"

	"github.com/containerd/platforms"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// Platform is a requested build platform. ID keeps the caller's spelling
// ("linux/amd64"); Spec is the normalized OCI form used for annotations.
type Platform struct {
	ID   string
	Spec specs.Platform
}

// ParsePlatform validates an "os/arch[/variant]" identifier.
func ParsePlatform(id string) (Platform, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if strings.Count(id, "/") < 1 || strings.Count(id, "/") > 2 {
		return Platform{}, Errorf(KindInvalidRequest, "platform %q: expected os/arch[/variant]", id)
	}
	for _, part := range strings.Split(id, "/") {
		if part == "" {
			return Platform{}, Errorf(KindInvalidRequest, "platform %q: empty segment", id)
		}
	}
	spec, err := platforms.Parse(id)
	if err != nil {
		return Platform{}, Errorf(KindInvalidRequest, "platform %q: %v", id, err)
	}
	return Platform{ID: id, Spec: platforms.Normalize(spec)}, nil
}

// ParsePlatforms parses a comma-separated platform list, collapsing
// duplicates (by normalized form) and keeping first-seen order.
func ParsePlatforms(raw []string) ([]Platform, error) {
	var out []Platform
	seen := map[string]bool{}
	suffixes := map[string]string{}
	for _, entry := range raw {
		for _, id := range strings.Split(entry, ",") {
			if strings.TrimSpace(id) == "" {
				continue
			}
			p, err := ParsePlatform(id)
			if err != nil {
				return nil, err
			}
			key := platforms.Format(p.Spec)
			if seen[key] {
				continue
			}
			seen[key] = true
			if other, ok := suffixes[p.Arch()]; ok {
				return nil, Errorf(KindInvalidRequest, "platforms %q and %q share the tag suffix %q", other, p.ID, p.Arch())
			}
			suffixes[p.Arch()] = p.ID
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, Errorf(KindInvalidRequest, "at least one platform is required")
	}
	return out, nil
}

// Arch returns the tag suffix for the platform: the arch segment of the
// identifier, with the variant appended when the caller gave one
// ("linux/arm/v7" → "arm-v7").
func (p Platform) Arch() string {
	parts := strings.Split(p.ID, "/")
	if len(parts) == 3 {
		return parts[1] + "-" + parts[2]
	}
	return parts[1]
}

// OS returns the os segment of the identifier.
func (p Platform) OS() string {
	return strings.SplitN(p.ID, "/", 2)[0]
}

func (p Platform) String() string { return p.ID }
