package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	var fsys FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "plots", "run")
	require.NoError(t, fsys.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "density.csv")
	w, err := fsys.Create(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("x,y\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.True(t, fsys.Exists(path))
	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x,y\n", string(data))

	info, err := fsys.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())
	assert.False(t, fsys.Exists(filepath.Join(dir, "missing.csv")))
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	require.NoError(t, mfs.WriteFile("/config/field.json", []byte(`{"seed": 3}`), 0o600))

	data, err := mfs.ReadFile("/config/../config/field.json")
	require.NoError(t, err)
	assert.Equal(t, `{"seed": 3}`, string(data))

	info, err := mfs.Stat("/config/field.json")
	require.NoError(t, err)
	assert.Equal(t, "field.json", info.Name())
	assert.Equal(t, int64(11), info.Size())
	assert.Equal(t, fs.FileMode(0o600), info.Mode())

	// Mutating the returned slice must not affect stored data.
	data[0] = 'X'
	again, _ := mfs.ReadFile("/config/field.json")
	assert.Equal(t, byte('{'), again[0])
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out/grid.html")
	require.NoError(t, err)
	_, err = w.Write([]byte("<html>"))
	require.NoError(t, err)

	data, _ := mfs.ReadFile("/out/grid.html")
	assert.Empty(t, data, "contents appear only after Close")

	require.NoError(t, w.Close())
	data, err = mfs.ReadFile("/out/grid.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(data))
	assert.Equal(t, []string{"/out/grid.html"}, mfs.Files())
}

func TestMemoryFileSystem_Dirs(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/a/b/c", 0o755))

	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		assert.True(t, mfs.Exists(p), p)
		info, err := mfs.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir(), p)
	}

	err := mfs.WriteFile("/a/b", []byte("x"), 0o644)
	assert.True(t, errors.Is(err, fs.ErrExist))
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = mfs.Stat("/nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, mfs.Exists("/nope"))
}
