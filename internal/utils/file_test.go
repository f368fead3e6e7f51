package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageFile(t *testing.T) {
	tests := map[string]bool{
		"a.jpg":           true,
		"B.JPG":           true,
		"c.Jpeg":          true,
		"d.png":           true,
		"e.PNG":           true,
		"f.webp":          false,
		"g.gif":           false,
		"noext":           false,
		"archive.jpg.txt": false,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsImageFile(name), name)
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.JPG", "c.jpeg", "notes.txt", "z.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.jpg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested.jpg", "inner.jpg"), []byte("x"), 0644))

	files, err := ListImageFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.JPG", "b.png", "c.jpeg"}, files)
}

func TestListImageFilesMissingDir(t *testing.T) {
	_, err := ListImageFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
	assert.True(t, DirExists(dir))
	assert.False(t, FileExists(dir))
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.png")
	assert.False(t, FileExists(path))
	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.True(t, FileExists(path))
	assert.False(t, DirExists(path))
}
