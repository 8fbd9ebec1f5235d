package source

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mholt/archives"
)

// ZipDir packs the regular files and directories under dir into an
// in-memory zip. The .git directory and symlinks are left out.
func ZipDir(ctx context.Context, dir string) ([]byte, error) {
	var files []archives.FileInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, archives.FileInfo{
			FileInfo:      info,
			NameInArchive: filepath.ToSlash(rel),
			Open: func() (fs.File, error) {
				return os.Open(path)
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := (archives.Zip{}).Archive(ctx, &buf, files); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
