package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadTestSet(t *testing.T) {
	dir := t.TempDir()

	// Two images with annotations, one without, plus a stray file the
	// loader must skip.
	writeFile(t, filepath.Join(dir, "img-b.jpg"), "fake-jpeg-b")
	writeFile(t, filepath.Join(dir, "img-b.jpg.rois.txt"),
		"0.1 0.2 0.3 0.4 2\n0.0 0.0 0.0 0.0 0\n0.5 0.5 0.9 0.9 7\n")
	writeFile(t, filepath.Join(dir, "img-a.jpg"), "fake-jpeg-a")
	writeFile(t, filepath.Join(dir, "img-a.jpg.rois.txt"), "0.0 0.0 0.0 0.0 0\n")
	writeFile(t, filepath.Join(dir, "img-c.png"), "fake-png-c")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not an image")

	set, err := LoadTestSet(dir, 0)
	require.NoError(t, err)
	require.Len(t, set, 3)

	// File-name order.
	assert.Equal(t, filepath.Join(dir, "img-a.jpg"), set[0].Path)
	assert.Equal(t, filepath.Join(dir, "img-b.jpg"), set[1].Path)
	assert.Equal(t, filepath.Join(dir, "img-c.png"), set[2].Path)

	// Padding rows dropped; empty ground truth preserved as empty.
	assert.Empty(t, set[0].Annotations)
	require.Len(t, set[1].Annotations, 2)
	assert.Equal(t, 2, set[1].Annotations[0].Label)
	assert.InDelta(t, 0.3, set[1].Annotations[0].Box.X2, 1e-6)
	assert.Equal(t, 7, set[1].Annotations[1].Label)
	assert.Empty(t, set[2].Annotations)

	assert.Equal(t, []byte("fake-jpeg-b"), set[1].Data)
}

func TestLoadTestSetLimit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), "a")
	writeFile(t, filepath.Join(dir, "b.jpg"), "b")
	writeFile(t, filepath.Join(dir, "c.jpg"), "c")

	set, err := LoadTestSet(dir, 2)
	require.NoError(t, err)
	assert.Len(t, set, 2)
}

func TestLoadTestSetErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadTestSet(filepath.Join(t.TempDir(), "nope"), 0)
		assert.Error(t, err)
	})

	t.Run("malformed annotation row", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "x.jpg"), "x")
		writeFile(t, filepath.Join(dir, "x.jpg.rois.txt"), "0.1 0.2 0.3 4\n")
		_, err := LoadTestSet(dir, 0)
		assert.Error(t, err)
	})

	t.Run("non numeric label", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "x.jpg"), "x")
		writeFile(t, filepath.Join(dir, "x.jpg.rois.txt"), "0.1 0.2 0.3 0.4 cat\n")
		_, err := LoadTestSet(dir, 0)
		assert.Error(t, err)
	})
}
