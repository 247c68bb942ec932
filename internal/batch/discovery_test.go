package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTree creates empty files below a temp dir and returns it.
func makeTree(t *testing.T, names ...string) string {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	return dir
}

func TestDiscoverImageFiles_EmptyArgs(t *testing.T) {
	files, err := discoverImageFiles([]string{}, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverImageFiles_Directory(t *testing.T) {
	dir := makeTree(t,
		"b.png", "a.jpg", "a.mask.png", "a_mask.png", "b_overlay.png", "notes.txt", "sub/c.png")

	files, err := discoverImageFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, files)
}

func TestDiscoverImageFiles_Recursive(t *testing.T) {
	dir := makeTree(t, "a.png", "sub/b.png", "sub/deeper/c.tiff", "sub/deeper/c.mask.png")

	files, err := discoverImageFiles([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "sub", "b.png"),
		filepath.Join(dir, "sub", "deeper", "c.tiff"),
	}, files)
}

func TestDiscoverImageFiles_Patterns(t *testing.T) {
	dir := makeTree(t, "cat.png", "dog.png", "cat.jpg", "skip_cat.png")

	files, err := discoverImageFiles([]string{dir}, false, []string{"cat.*", "skip_*"}, []string{"skip_*"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "cat.jpg"), filepath.Join(dir, "cat.png")}, files)
}

func TestDiscoverImageFiles_ExplicitFiles(t *testing.T) {
	dir := makeTree(t, "a.png", "a.txt", "a.mask.png")
	png := filepath.Join(dir, "a.png")

	files, err := discoverImageFiles([]string{png, filepath.Join(dir, "a.txt"), filepath.Join(dir, "a.mask.png"), png, dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{png}, files)
}

func TestDiscoverImageFiles_MissingPath(t *testing.T) {
	_, err := discoverImageFiles([]string{filepath.Join(t.TempDir(), "missing")}, false, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestMaskFor(t *testing.T) {
	dir := makeTree(t, "a.png", "a.mask.png", "b.png")
	assert.Equal(t, filepath.Join(dir, "a.mask.png"), maskFor(filepath.Join(dir, "a.png")))
	assert.Empty(t, maskFor(filepath.Join(dir, "b.png")))
}

func TestShouldIncludeFile(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		include []string
		exclude []string
		want    bool
	}{
		{"no patterns", "/x/a.png", nil, nil, true},
		{"include match", "/x/a.png", []string{"*.png"}, nil, true},
		{"include miss", "/x/a.jpg", []string{"*.png"}, nil, false},
		{"exclude wins", "/x/a.png", []string{"*.png"}, []string{"a.*"}, false},
		{"exclude only", "/x/b.png", nil, []string{"a.*"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldIncludeFile(tt.path, tt.include, tt.exclude))
		})
	}
}
