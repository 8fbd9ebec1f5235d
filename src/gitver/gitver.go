// Package gitver reads revision and version metadata from a git checkout.
// It backs the git-commit tag strategy and the default app version when a
// build is triggered from a tagged commit.
package gitver

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepository is returned when dir is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// VersionInfo holds resolved version metadata from git.
type VersionInfo struct {
	SHA       string // full HEAD commit hash
	ShortSHA  string // first 7 characters
	Branch    string // empty on a detached HEAD
	Tag       string // tag pointing exactly at HEAD, if any
	Version   string // semver from Tag without the "v" prefix; empty when Tag is not semver
	IsRelease bool   // true if HEAD is exactly at a semver tag
}

// DetectVersion resolves version info for the repository containing dir.
func DetectVersion(dir string) (*VersionInfo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}
	return FromRepository(repo)
}

// FromRepository resolves version info from an opened repository.
func FromRepository(repo *git.Repository) (*VersionInfo, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}

	v := &VersionInfo{SHA: head.Hash().String()}
	v.ShortSHA = v.SHA
	if len(v.ShortSHA) > 7 {
		v.ShortSHA = v.ShortSHA[:7]
	}
	if head.Name().IsBranch() {
		v.Branch = head.Name().Short()
	}

	tag, err := exactTag(repo, head.Hash())
	if err != nil {
		return nil, err
	}
	v.Tag = tag
	if tag != "" {
		if sv, err := semver.NewVersion(tag); err == nil {
			v.Version = sv.String()
			v.IsRelease = true
		}
	}
	return v, nil
}

// Revision returns the HEAD commit hash of the repository containing dir.
func Revision(dir string) (string, error) {
	v, err := DetectVersion(dir)
	if err != nil {
		return "", err
	}
	return v.SHA, nil
}

// exactTag returns the highest semver tag (or, failing that, the first tag in
// name order) whose target commit is hash.
func exactTag(repo *git.Repository, hash plumbing.Hash) (string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return "", fmt.Errorf("listing tags: %w", err)
	}
	defer iter.Close()

	var (
		best    string
		bestVer *semver.Version
		plain   string
	)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		// Annotated tags point at a tag object; peel to the commit.
		if obj, err := repo.TagObject(target); err == nil {
			target = obj.Target
		}
		if target != hash {
			return nil
		}
		name := ref.Name().Short()
		if sv, err := semver.NewVersion(name); err == nil {
			if bestVer == nil || sv.GreaterThan(bestVer) {
				best, bestVer = name, sv
			}
			return nil
		}
		if plain == "" || name < plain {
			plain = name
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking tags: %w", err)
	}
	if best != "" {
		return best, nil
	}
	return plain, nil
}
