package gitver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with one commit and returns it with the commit hash.
func initRepo(t *testing.T, dir string) (*git.Repository, plumbing.Hash) {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "Dockerfile"), []byte("FROM alpine\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("app/Dockerfile")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)
	return repo, hash
}

func TestDetectVersionUntagged(t *testing.T) {
	dir := t.TempDir()
	_, hash := initRepo(t, dir)

	v, err := DetectVersion(filepath.Join(dir, "app"))
	require.NoError(t, err)
	assert.Equal(t, hash.String(), v.SHA)
	assert.Equal(t, hash.String()[:7], v.ShortSHA)
	assert.Equal(t, "master", v.Branch)
	assert.Empty(t, v.Tag)
	assert.False(t, v.IsRelease)
}

func TestDetectVersionTagged(t *testing.T) {
	dir := t.TempDir()
	repo, hash := initRepo(t, dir)
	_, err := repo.CreateTag("v1.2.0", hash, nil)
	require.NoError(t, err)
	_, err = repo.CreateTag("v1.10.0", hash, &git.CreateTagOptions{
		Message: "release",
		Tagger:  &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)
	_, err = repo.CreateTag("stable", hash, nil)
	require.NoError(t, err)

	v, err := DetectVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1.10.0", v.Tag)
	assert.Equal(t, "1.10.0", v.Version)
	assert.True(t, v.IsRelease)
}

func TestDetectVersionNotRepository(t *testing.T) {
	_, err := DetectVersion(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestRevision(t *testing.T) {
	dir := t.TempDir()
	_, hash := initRepo(t, dir)

	rev, err := Revision(dir)
	require.NoError(t, err)
	assert.Equal(t, hash.String(), rev)
}
