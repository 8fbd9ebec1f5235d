package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" Linux/ARM/v7 ")
	require.NoError(t, err)
	assert.Equal(t, "linux/arm/v7", p.ID)
	assert.Equal(t, "arm-v7", p.Arch())
	assert.Equal(t, "linux", p.OS())
	assert.Equal(t, "arm", p.Spec.Architecture)
	assert.Equal(t, "v7", p.Spec.Variant)

	p, err = ParsePlatform("linux/x86_64")
	require.NoError(t, err)
	assert.Equal(t, "amd64", p.Spec.Architecture, "spec is normalized")
	assert.Equal(t, "x86_64", p.Arch(), "tag suffix keeps the caller's spelling")

	for _, bad := range []string{"", "linux", "linux/", "/amd64", "linux/arm/v7/extra"} {
		_, err := ParsePlatform(bad)
		assert.Equal(t, KindInvalidRequest, KindOf(err), bad)
	}
}

func TestParsePlatformsDedupesInOrder(t *testing.T) {
	got, err := ParsePlatforms([]string{"linux/arm64,linux/amd64", "linux/arm64", " linux/amd64 "})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "linux/arm64", got[0].ID)
	assert.Equal(t, "linux/amd64", got[1].ID)
}

func TestParsePlatformsRejectsEmpty(t *testing.T) {
	_, err := ParsePlatforms(nil)
	assert.Equal(t, KindInvalidRequest, KindOf(err))

	_, err = ParsePlatforms([]string{" , "})
	assert.Equal(t, KindInvalidRequest, KindOf(err))
}

func TestParsePlatformsRejectsSuffixCollision(t *testing.T) {
	_, err := ParsePlatforms([]string{"linux/amd64", "windows/amd64"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag suffix")
}
