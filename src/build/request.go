package build

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/distribution/reference"
)

// RequestInput is the raw, caller-supplied shape of a build request.
type RequestInput struct {
	AppName     string
	AppVersion  string
	TagStrategy string
	Platforms   []string

	// SourceRoot is the resolved source tree (extracted archive or checkout).
	SourceRoot string
	// ContextPath is the build context, relative to SourceRoot. Default ".".
	ContextPath string
	// Dockerfile is relative to the build context. Default "Dockerfile".
	Dockerfile string

	UniqueID  string
	BuildArgs string // flat "KEY=VALUE,KEY=VALUE" encoding
	Revision  string // VCS revision of the source, if known

	CacheEnabled bool
	CacheTTL     time.Duration

	Registry string // e.g. "harbor.example.com"
	Project  string // e.g. "library"

	// Now pins the resolution time (timestamp tags, BUILD_DATE). Zero means time.Now().
	Now time.Time
}

// Request is a validated build request. It is never modified after
// NewRequest returns, so workers may share it freely.
type Request struct {
	appName      string
	appVersion   string
	strategy     TagStrategy
	tag          string
	platforms    []Platform
	sourceRoot   string
	contextDir   string
	dockerfile   string
	uniqueID     string
	buildArgs    map[string]string
	revision     string
	cacheEnabled bool
	cacheTTL     time.Duration
	image        string
	createdAt    time.Time
}

// NewRequest validates in and returns the resolved request plus soft warnings.
// Every referenced path must already exist: sources are resolved first.
func NewRequest(in RequestInput) (*Request, []string, error) {
	var (
		warnings []string
		errs     []string
	)

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	appName := strings.TrimSpace(in.AppName)
	appVersion := strings.TrimSpace(in.AppVersion)
	if appName == "" {
		errs = append(errs, "app name is required")
	}
	if appVersion == "" {
		errs = append(errs, "app version is required")
	} else if _, err := semver.NewVersion(appVersion); err != nil {
		warnings = append(warnings, fmt.Sprintf("app version %q is not semver", appVersion))
	}

	strategy, err := ParseTagStrategy(in.TagStrategy)
	if err != nil {
		errs = append(errs, err.Error())
	}

	plats, err := ParsePlatforms(in.Platforms)
	if err != nil {
		errs = append(errs, err.Error())
	}

	buildArgs, err := ParseBuildArgs(in.BuildArgs)
	if err != nil {
		errs = append(errs, err.Error())
	}

	if in.CacheEnabled && in.CacheTTL < 0 {
		errs = append(errs, "cache ttl must not be negative")
	}

	if len(errs) > 0 {
		return nil, warnings, Errorf(KindInvalidRequest, "%s", strings.Join(errs, "; "))
	}

	contextDir, dockerfile, err := resolvePaths(in.SourceRoot, in.ContextPath, in.Dockerfile)
	if err != nil {
		return nil, warnings, err
	}

	tag := ResolveTag(strategy, appVersion, in.Revision, now)
	image := ImageName(in.Registry, in.Project, appName)
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return nil, warnings, Errorf(KindInvalidRequest, "image name %q: %v", image, err)
	}
	for _, t := range append([]string{tag}, ArchTags(tag, plats[0])...) {
		if _, err := reference.WithTag(named, t); err != nil {
			return nil, warnings, Errorf(KindInvalidRequest, "tag %q: %v", t, err)
		}
	}

	uniqueID := strings.TrimSpace(in.UniqueID)
	if uniqueID == "" {
		uniqueID = NewUniqueID(now)
	}

	injected := injectBuildArgs(buildArgs, filepath.Join(contextDir, dockerfile), appVersion, in.Revision, now)
	for _, k := range injected {
		warnings = append(warnings, fmt.Sprintf("build arg %s injected from Dockerfile ARG", k))
	}

	return &Request{
		appName:      appName,
		appVersion:   appVersion,
		strategy:     strategy,
		tag:          tag,
		platforms:    plats,
		sourceRoot:   in.SourceRoot,
		contextDir:   contextDir,
		dockerfile:   dockerfile,
		uniqueID:     uniqueID,
		buildArgs:    buildArgs,
		revision:     in.Revision,
		cacheEnabled: in.CacheEnabled,
		cacheTTL:     in.CacheTTL,
		image:        image,
		createdAt:    now,
	}, warnings, nil
}

// resolvePaths checks that the context directory and the Dockerfile under it
// exist and stay inside root.
func resolvePaths(root, contextPath, dockerfile string) (string, string, error) {
	if root == "" {
		return "", "", Errorf(KindInvalidRequest, "source root is required")
	}
	if contextPath == "" {
		contextPath = "."
	}
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	contextPath = filepath.Clean(filepath.FromSlash(contextPath))
	dockerfile = filepath.Clean(filepath.FromSlash(dockerfile))
	if !filepath.IsLocal(contextPath) && contextPath != "." {
		return "", "", Errorf(KindInvalidRequest, "build context %q must be a relative path inside the source", contextPath)
	}
	if !filepath.IsLocal(dockerfile) {
		return "", "", Errorf(KindInvalidRequest, "dockerfile %q must be a relative path inside the build context", dockerfile)
	}

	contextDir := filepath.Join(root, contextPath)
	if err := checkInputs(contextDir, dockerfile); err != nil {
		return "", "", err
	}
	return contextDir, dockerfile, nil
}

// checkInputs returns a MissingInput error unless contextDir is a directory
// holding the Dockerfile.
func checkInputs(contextDir, dockerfile string) error {
	fi, err := os.Stat(contextDir)
	if err != nil {
		return &Error{Kind: KindMissingInput, Ref: contextDir, Err: fmt.Errorf("build context: %w", err)}
	}
	if !fi.IsDir() {
		return &Error{Kind: KindMissingInput, Ref: contextDir, Err: fmt.Errorf("build context is not a directory")}
	}
	df := filepath.Join(contextDir, dockerfile)
	fi, err = os.Stat(df)
	if err != nil {
		return &Error{Kind: KindMissingInput, Ref: df, Err: fmt.Errorf("dockerfile: %w", err)}
	}
	if fi.IsDir() {
		return &Error{Kind: KindMissingInput, Ref: df, Err: fmt.Errorf("dockerfile is a directory")}
	}
	return nil
}

// ParseBuildArgs decodes the flat "KEY=VALUE,KEY=VALUE" encoding.
// Values cannot contain commas; the last occurrence of a key wins.
func ParseBuildArgs(raw string) (map[string]string, error) {
	args := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, Errorf(KindInvalidRequest, "build arg %q: expected KEY=VALUE", pair)
		}
		args[k] = strings.TrimSpace(v)
	}
	return args, nil
}

// ImageName joins registry, project and app into the repository reference
// "{registry}/{project}/{appName}". Empty parts are skipped.
func ImageName(registry, project, appName string) string {
	registry = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(registry, "https://"), "http://"), "/")
	var parts []string
	for _, p := range []string{registry, strings.Trim(project, "/"), appName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// WithContextDir returns a copy of r whose build context points at dir.
// The coordinator uses it to hand each worker a private copy of the context.
func (r *Request) WithContextDir(dir string) *Request {
	c := *r
	c.contextDir = dir
	return &c
}

func (r *Request) AppName() string          { return r.appName }
func (r *Request) AppVersion() string       { return r.appVersion }
func (r *Request) TagStrategy() TagStrategy { return r.strategy }
func (r *Request) Tag() string              { return r.tag }
func (r *Request) SourceRoot() string       { return r.sourceRoot }
func (r *Request) ContextDir() string       { return r.contextDir }
func (r *Request) Dockerfile() string       { return r.dockerfile }
func (r *Request) UniqueID() string         { return r.uniqueID }
func (r *Request) Revision() string         { return r.revision }
func (r *Request) CacheEnabled() bool       { return r.cacheEnabled }
func (r *Request) CacheTTL() time.Duration  { return r.cacheTTL }
func (r *Request) Image() string            { return r.image }
func (r *Request) CreatedAt() time.Time     { return r.createdAt }

// Platforms returns a copy of the requested platforms.
func (r *Request) Platforms() []Platform { return slices.Clone(r.platforms) }

// BuildArgs returns a copy of the resolved build arguments.
func (r *Request) BuildArgs() map[string]string { return maps.Clone(r.buildArgs) }

// BuildArgKeys returns the build argument names in sorted order.
func (r *Request) BuildArgKeys() []string {
	keys := make([]string, 0, len(r.buildArgs))
	for k := range r.buildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ref returns "{image}:{tag}".
func (r *Request) Ref(tag string) string { return r.image + ":" + tag }

// UnifiedTags returns the manifest-list tags: the version tag and "latest"
// (a single entry when the strategy already yields "latest").
func (r *Request) UnifiedTags() []string {
	if r.tag == LatestTag {
		return []string{LatestTag}
	}
	return []string{r.tag, LatestTag}
}
