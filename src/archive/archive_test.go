package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/dockwright/src/build"
)

var sampleFiles = map[string]string{
	"Dockerfile":      "FROM alpine\nCOPY . /app\n",
	"src/main.go":     "package main\n",
	"config/app.yaml": "port: 8080\n",
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tarBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatUSTAR,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func assertTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	got, err := Walk(root)
	require.NoError(t, err)

	var want []string
	for name, content := range files {
		want = append(want, name)
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
		require.NoError(t, err)
		assert.Equal(t, content, string(data), name)
	}
	assert.ElementsMatch(t, want, got)
}

func TestResolveZipRoundTrip(t *testing.T) {
	tree, err := Resolve(context.Background(), zipBytes(t, sampleFiles), "source.zip", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, FormatZip, tree.Format)
	assert.Equal(t, 3, tree.Files)
	assertTree(t, tree.Root, sampleFiles)
}

func TestResolveEmptyZip(t *testing.T) {
	tree, err := Resolve(context.Background(), zipBytes(t, nil), "empty.zip", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Files)
	assertTree(t, tree.Root, nil)
}

func TestResolveTar(t *testing.T) {
	tree, err := Resolve(context.Background(), tarBytes(t, sampleFiles), "source.tar", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, FormatTar, tree.Format)
	assert.Equal(t, len(sampleFiles), tree.Files)
	assertTree(t, tree.Root, sampleFiles)
}

func TestResolveTarGz(t *testing.T) {
	data := gzipBytes(t, tarBytes(t, sampleFiles))
	for _, name := range []string{"source.tar.gz", "SOURCE.TGZ"} {
		tree, err := Resolve(context.Background(), data, name, t.TempDir())
		require.NoError(t, err, name)
		assert.Equal(t, FormatTarGz, tree.Format)
		assert.Equal(t, len(sampleFiles), tree.Files)
		assertTree(t, tree.Root, sampleFiles)
	}
}

func TestResolveSniffsUnknownExtension(t *testing.T) {
	cases := map[string][]byte{
		"zip":    zipBytes(t, sampleFiles),
		"tar":    tarBytes(t, sampleFiles),
		"tar.gz": gzipBytes(t, tarBytes(t, sampleFiles)),
	}
	for want, data := range cases {
		tree, err := Resolve(context.Background(), data, "upload.bin", t.TempDir())
		require.NoError(t, err, want)
		assert.Equal(t, Format(want), tree.Format)
		assertTree(t, tree.Root, sampleFiles)
	}
}

func TestResolveClassifiedFormatDoesNotFallThrough(t *testing.T) {
	parent := t.TempDir()
	// A tar named .zip: the extension wins and zip extraction fails.
	_, err := Resolve(context.Background(), tarBytes(t, sampleFiles), "source.zip", parent)
	require.Error(t, err)
	assert.Equal(t, build.KindUnrecognizedFormat, build.KindOf(err))

	attempts := Attempts(err)
	require.Len(t, attempts, 1)
	assert.Equal(t, FormatZip, attempts[0].Format)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed extraction must clean up")
}

func TestResolveUnknownRecordsEveryAttempt(t *testing.T) {
	garbage := bytes.Repeat([]byte("not an archive at all "), 64)
	_, err := Resolve(context.Background(), garbage, "blob", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, build.KindUnrecognizedFormat, build.KindOf(err))

	attempts := Attempts(err)
	require.Len(t, attempts, 3)
	assert.Equal(t, []Format{FormatZip, FormatTar, FormatTarGz},
		[]Format{attempts[0].Format, attempts[1].Format, attempts[2].Format})
	for _, a := range attempts {
		assert.Error(t, a.Err)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	_, err := Resolve(context.Background(), nil, "source.zip", t.TempDir())
	assert.Equal(t, build.KindUnrecognizedFormat, build.KindOf(err))
}

func TestResolveRejectsEscapingEntries(t *testing.T) {
	parent := t.TempDir()
	data := tarBytes(t, map[string]string{"../evil.sh": "#!/bin/sh\n"})
	tree, err := Resolve(context.Background(), data, "source.tar", parent)
	if err == nil {
		assertTree(t, tree.Root, nil)
	}
	assert.NoFileExists(t, filepath.Join(filepath.Dir(parent), "evil.sh"))
}

func TestFormatFromName(t *testing.T) {
	cases := map[string]Format{
		"a.zip":    FormatZip,
		"a.tar":    FormatTar,
		"a.tar.gz": FormatTarGz,
		"a.tgz":    FormatTarGz,
	}
	for name, want := range cases {
		got, ok := FormatFromName(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := FormatFromName("a.rar")
	assert.False(t, ok)
}
