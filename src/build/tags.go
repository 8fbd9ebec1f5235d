package build

import (
	"fmt"
	"strings"
	"time"
)

// TagStrategy selects how the version tag of a build is derived.
type TagStrategy string

const (
	TagVersionBuild TagStrategy = "version-build"
	TagTimestamp    TagStrategy = "timestamp"
	TagLatest       TagStrategy = "latest"
	TagGitCommit    TagStrategy = "git-commit"
)

// LatestTag is the moving alias published next to every version tag.
const LatestTag = "latest"

const (
	timestampLayout = "20060102-150405"
	shortRevLen     = 7
	unknownRevision = "unknown"
)

// ParseTagStrategy accepts the wire names plus a few spellings used by older
// trigger scripts (VersionBuild, git_commit, ...).
func ParseTagStrategy(s string) (TagStrategy, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	switch norm {
	case "", "version-build", "versionbuild", "version":
		return TagVersionBuild, nil
	case "timestamp":
		return TagTimestamp, nil
	case "latest":
		return TagLatest, nil
	case "git-commit", "gitcommit", "commit":
		return TagGitCommit, nil
	}
	return "", Errorf(KindInvalidRequest, "unknown tag strategy %q (valid: version-build, timestamp, latest, git-commit)", s)
}

// ResolveTag computes the version tag for a build.
//
//	version-build → "1.0.0"
//	timestamp     → "1.0.0-20240102-150405"
//	latest        → "latest"
//	git-commit    → "1.0.0-abc1234" ("1.0.0-unknown" without a revision)
//
// Only the timestamp strategy reads now.
func ResolveTag(strategy TagStrategy, version, revision string, now time.Time) string {
	switch strategy {
	case TagTimestamp:
		return fmt.Sprintf("%s-%s", version, now.Format(timestampLayout))
	case TagLatest:
		return LatestTag
	case TagGitCommit:
		return fmt.Sprintf("%s-%s", version, shortRevision(revision))
	default:
		return version
	}
}

func shortRevision(rev string) string {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return unknownRevision
	}
	if len(rev) > shortRevLen {
		return rev[:shortRevLen]
	}
	return rev
}

// ArchTag returns the per-platform tag "{tag}-{arch}".
func ArchTag(tag string, p Platform) string {
	return tag + "-" + p.Arch()
}

// ArchTags returns the per-platform destination tags in their fixed order:
// "{tag}-{arch}" then "latest-{arch}". The pair collapses to one entry when
// tag is already "latest".
func ArchTags(tag string, p Platform) []string {
	if tag == LatestTag {
		return []string{ArchTag(LatestTag, p)}
	}
	return []string{ArchTag(tag, p), ArchTag(LatestTag, p)}
}
