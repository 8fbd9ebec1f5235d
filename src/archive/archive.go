// Package archive turns an uploaded source archive into an extracted file
// tree. The container format comes from the declared file name when it has a
// known extension, otherwise from the leading magic bytes; when neither
// identifies it, zip, tar and tar.gz are tried in that order.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/mholt/archives"

	"github.com/sofmeright/dockwright/src/build"
)

// Format is a supported archive container format.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTar   Format = "tar"
	FormatTarGz Format = "tar.gz"
)

// fallbackOrder is tried when neither the name nor the magic bytes classify the input.
var fallbackOrder = []Format{FormatZip, FormatTar, FormatTarGz}

// sniffLen covers the ustar magic at offset 257.
const sniffLen = 512

// Tree is an extracted archive.
type Tree struct {
	Root   string // fresh directory holding the extracted entries
	Format Format
	Files  int // regular files written
}

// Attempt records one extraction try.
type Attempt struct {
	Format Format
	Err    error
}

// AttemptsError carries the full history when no candidate format worked.
type AttemptsError struct {
	Attempts []Attempt
}

func (e *AttemptsError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Format, a.Err))
	}
	return "no format matched (" + strings.Join(parts, "; ") + ")"
}

// Attempts returns the extraction history recorded in err, if any.
func Attempts(err error) []Attempt {
	var ae *AttemptsError
	if errors.As(err, &ae) {
		return ae.Attempts
	}
	return nil
}

// FormatFromName classifies by extension. Matching is case-insensitive.
func FormatFromName(name string) (Format, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, true
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, true
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, true
	}
	return "", false
}

// Sniff classifies by magic signature. A gzip stream is assumed to wrap a tar.
func Sniff(head []byte) (Format, bool) {
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	switch {
	case filetype.IsType(head, matchers.TypeGz):
		return FormatTarGz, true
	case filetype.IsType(head, matchers.TypeZip):
		return FormatZip, true
	case filetype.IsType(head, matchers.TypeTar):
		return FormatTar, true
	}
	return "", false
}

// Resolve extracts data into a fresh directory created under parent (the
// system temp dir when empty). A format picked from the name or the magic
// bytes is final: if it fails to extract, Resolve reports that format and
// does not guess further. On failure nothing is left behind.
func Resolve(ctx context.Context, data []byte, declaredName, parent string) (*Tree, error) {
	if len(data) == 0 {
		return nil, &build.Error{Kind: build.KindUnrecognizedFormat, Ref: declaredName, Err: errors.New("empty input")}
	}

	format, ok := FormatFromName(declaredName)
	if !ok {
		format, ok = Sniff(data)
	}
	if ok {
		tree, err := extractFresh(ctx, format, data, parent)
		if err != nil {
			return nil, &build.Error{
				Kind: build.KindUnrecognizedFormat,
				Ref:  declaredName,
				Err:  &AttemptsError{Attempts: []Attempt{{Format: format, Err: err}}},
			}
		}
		return tree, nil
	}

	var attempts []Attempt
	for _, candidate := range fallbackOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tree, err := extractFresh(ctx, candidate, data, parent)
		if err == nil {
			return tree, nil
		}
		attempts = append(attempts, Attempt{Format: candidate, Err: err})
	}
	return nil, &build.Error{
		Kind: build.KindUnrecognizedFormat,
		Ref:  declaredName,
		Err:  &AttemptsError{Attempts: attempts},
	}
}

// ResolveReader reads r fully and calls Resolve.
func ResolveReader(ctx context.Context, r io.Reader, declaredName, parent string) (*Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	return Resolve(ctx, data, declaredName, parent)
}

// extractFresh extracts into a new directory, removing it again on failure.
func extractFresh(ctx context.Context, format Format, data []byte, parent string) (*Tree, error) {
	root, err := os.MkdirTemp(parent, "source-*")
	if err != nil {
		return nil, fmt.Errorf("creating extraction dir: %w", err)
	}

	files, err := extract(ctx, format, data, root)
	if err != nil {
		os.RemoveAll(root)
		return nil, err
	}
	return &Tree{Root: root, Format: format, Files: files}, nil
}

func extract(ctx context.Context, format Format, data []byte, root string) (int, error) {
	files := 0
	handler := fileWriter(root, &files)

	var err error
	switch format {
	case FormatZip:
		err = archives.Zip{}.Extract(ctx, bytes.NewReader(data), handler)
	case FormatTar:
		err = archives.Tar{}.Extract(ctx, bytes.NewReader(data), handler)
	case FormatTarGz:
		rc, gzErr := archives.Gz{}.OpenReader(bytes.NewReader(data))
		if gzErr != nil {
			return 0, gzErr
		}
		defer rc.Close()
		err = archives.Tar{}.Extract(ctx, rc, handler)
	default:
		return 0, fmt.Errorf("unsupported format %q", format)
	}
	return files, err
}

// fileWriter writes directories and regular files below root. Entries that
// would land outside root are rejected; links and devices are skipped.
func fileWriter(root string, count *int) archives.FileHandler {
	return func(ctx context.Context, f archives.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := path.Clean(strings.TrimPrefix(f.NameInArchive, "./"))
		if name == "." || name == "/" {
			return nil
		}
		rel := filepath.FromSlash(name)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("entry %q escapes the extraction root", f.NameInArchive)
		}
		target := filepath.Join(root, rel)

		switch {
		case f.IsDir():
			return os.MkdirAll(target, 0o755)
		case !f.Mode().IsRegular():
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.NameInArchive, err)
		}
		defer src.Close()

		perm := f.Mode().Perm() | 0o600
		dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return fmt.Errorf("writing %s: %w", rel, err)
		}
		if err := dst.Close(); err != nil {
			return err
		}
		*count++
		return nil
	}
}

// Walk lists the regular files of an extracted tree as slash-separated
// paths relative to root.
func Walk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	return files, err
}
