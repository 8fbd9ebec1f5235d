package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/sofmeright/dockwright/src/build"
	"github.com/sofmeright/dockwright/src/gitver"
)

// Git clones url at ref (a branch or a tag; the remote HEAD when empty).
// Credentials come from the environment using the same prefix convention as
// registries: PREFIX_USER / PREFIX_PASS.
type Git struct {
	URL              string
	Ref              string
	CredentialPrefix string
	// Depth limits history: 0 means a shallow clone of depth 1, a negative
	// value fetches the full history.
	Depth int
}

func (g *Git) Resolve(ctx context.Context, workDir string) (*Tree, error) {
	if strings.TrimSpace(g.URL) == "" {
		return nil, build.Errorf(build.KindInvalidRequest, "git url is required")
	}
	dir, err := os.MkdirTemp(workDir, "git-*")
	if err != nil {
		return nil, fmt.Errorf("creating checkout dir: %w", err)
	}

	repo, err := g.clone(ctx, dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	info, err := gitver.FromRepository(repo)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("reading checkout of %s: %w", g.URL, err)
	}

	origin := g.URL
	if g.Ref != "" {
		origin += "@" + g.Ref
	}
	return &Tree{
		Root:     dir,
		Revision: info.SHA,
		Version:  info.Version,
		Origin:   fmt.Sprintf("git %s (%s)", origin, info.ShortSHA),
		temp:     true,
	}, nil
}

// clone tries ref as a branch first and then as a tag.
func (g *Git) clone(ctx context.Context, dir string) (*git.Repository, error) {
	depth := g.Depth
	switch {
	case depth == 0:
		depth = 1
	case depth < 0:
		depth = 0
	}
	opts := &git.CloneOptions{
		URL:          g.URL,
		Depth:        depth,
		SingleBranch: true,
		Tags:         git.NoTags,
		Auth:         g.auth(),
	}

	if g.Ref == "" {
		repo, err := git.PlainCloneContext(ctx, dir, false, opts)
		if err != nil {
			return nil, cloneError(g.URL, "", err)
		}
		return repo, nil
	}

	var errs []error
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(g.Ref),
		plumbing.NewTagReferenceName(g.Ref),
	} {
		o := *opts
		o.ReferenceName = name
		repo, err := git.PlainCloneContext(ctx, dir, false, &o)
		if err == nil {
			return repo, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		if !isMissingRef(err) {
			break
		}
		// A failed clone can leave a partial .git behind.
		if err := resetDir(dir); err != nil {
			return nil, err
		}
	}
	return nil, cloneError(g.URL, g.Ref, errors.Join(errs...))
}

func (g *Git) auth() transport.AuthMethod {
	if g.CredentialPrefix == "" {
		return nil
	}
	p := strings.ToUpper(g.CredentialPrefix)
	user, pass := os.Getenv(p+"_USER"), os.Getenv(p+"_PASS")
	if user == "" && pass == "" {
		return nil
	}
	return &http.BasicAuth{Username: user, Password: pass}
}

func isMissingRef(err error) bool {
	var nomatch git.NoMatchingRefSpecError
	return errors.As(err, &nomatch) || errors.Is(err, plumbing.ErrReferenceNotFound)
}

func resetDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func cloneError(url, ref string, err error) error {
	target := url
	if ref != "" {
		target += "@" + ref
	}
	return &build.Error{Kind: build.KindMissingInput, Ref: target, Err: fmt.Errorf("cloning: %w", err)}
}
