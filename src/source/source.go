// Package source resolves where a build's files come from: an uploaded
// archive, a local directory, or a git reference. Every resolver yields a
// directory tree the build request is validated against.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sofmeright/dockwright/src/archive"
	"github.com/sofmeright/dockwright/src/build"
	"github.com/sofmeright/dockwright/src/gitver"
)

// Tree is a resolved source tree.
type Tree struct {
	Root     string
	Revision string // commit hash when known
	Version  string // semver from an exact git tag when known
	Origin   string // human-readable description of where the tree came from
	temp     bool
}

// Cleanup removes the tree when the resolver created it.
func (t *Tree) Cleanup() error {
	if t == nil || !t.temp {
		return nil
	}
	return os.RemoveAll(t.Root)
}

// Resolver produces a source tree below workDir.
type Resolver interface {
	Resolve(ctx context.Context, workDir string) (*Tree, error)
}

// Archive resolves an uploaded archive file. Path "-" reads Reader instead.
type Archive struct {
	Path   string
	Reader io.Reader
	// Name is the declared file name used for format dispatch; defaults to
	// the base name of Path.
	Name     string
	Revision string
}

func (a *Archive) Resolve(ctx context.Context, workDir string) (*Tree, error) {
	name := a.Name
	if name == "" && a.Path != "-" {
		name = filepath.Base(a.Path)
	}

	var r io.Reader
	switch {
	case a.Path == "-" || a.Path == "":
		if a.Reader == nil {
			return nil, build.Errorf(build.KindMissingInput, "no archive given")
		}
		r = a.Reader
	default:
		f, err := os.Open(a.Path)
		if err != nil {
			return nil, &build.Error{Kind: build.KindMissingInput, Ref: a.Path, Err: err}
		}
		defer f.Close()
		r = f
	}

	tree, err := archive.ResolveReader(ctx, r, name, workDir)
	if err != nil {
		return nil, err
	}
	return &Tree{
		Root:     tree.Root,
		Revision: a.Revision,
		Origin:   fmt.Sprintf("%s archive %s (%d files)", tree.Format, displayName(name), tree.Files),
		temp:     true,
	}, nil
}

// Directory packs a local directory into a zip and resolves it like an
// upload, so the build sees exactly what an uploaded archive would contain.
type Directory struct {
	Path     string
	Revision string // detected from the enclosing git repository when empty
}

func (d *Directory) Resolve(ctx context.Context, workDir string) (*Tree, error) {
	fi, err := os.Stat(d.Path)
	if err != nil {
		return nil, &build.Error{Kind: build.KindMissingInput, Ref: d.Path, Err: err}
	}
	if !fi.IsDir() {
		return nil, &build.Error{Kind: build.KindMissingInput, Ref: d.Path, Err: errors.New("not a directory")}
	}

	data, err := ZipDir(ctx, d.Path)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", d.Path, err)
	}
	tree, err := archive.Resolve(ctx, data, filepath.Base(filepath.Clean(d.Path))+".zip", workDir)
	if err != nil {
		return nil, err
	}

	out := &Tree{
		Root:     tree.Root,
		Revision: d.Revision,
		Origin:   fmt.Sprintf("directory %s (%d files)", d.Path, tree.Files),
		temp:     true,
	}
	if info, err := gitver.DetectVersion(d.Path); err == nil {
		if out.Revision == "" {
			out.Revision = info.SHA
		}
		out.Version = info.Version
	}
	return out, nil
}

func displayName(name string) string {
	if name == "" {
		return "<stdin>"
	}
	return name
}
