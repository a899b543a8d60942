package walker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func collect(t *testing.T, w *Walker) map[string]Entry {
	t.Helper()
	entries := make(map[string]Entry)
	err := w.Walk(context.Background(), func(e Entry) error {
		entries[e.RelPath] = e
		return nil
	})
	require.NoError(t, err)
	return entries
}

func keys(m map[string]Entry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "sub/b.txt", "world!")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	w, err := NewWalker(root, Options{})
	require.NoError(t, err)

	entries := collect(t, w)
	assert.Equal(t, []string{"a.txt", "empty", "sub", "sub/b.txt"}, keys(entries))
	assert.Equal(t, int64(5), entries["a.txt"].Size)
	assert.Equal(t, int64(6), entries["sub/b.txt"].Size)
	assert.True(t, entries["sub"].IsDir)
	assert.True(t, entries["empty"].IsDir)
	assert.False(t, entries["a.txt"].IsDir)
	assert.Equal(t, filepath.Join(w.Root(), "sub", "b.txt"), entries["sub/b.txt"].Path)
}

func TestWalkExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", "1")
	writeFile(t, root, "scratch.TMP", "2")
	writeFile(t, root, "node_modules/pkg/index.js", "3")
	writeFile(t, root, "docs/build/out.html", "4")
	writeFile(t, root, "docs/readme.md", "5")
	writeFile(t, root, "logs/app.log", "6")

	w, err := NewWalker(root, Options{
		ExcludeFiles: []string{"*.tmp"},
		ExcludeDirs:  []string{"NODE_MODULES"},
		Ignore:       []string{"docs/build/", "**/*.log"},
	})
	require.NoError(t, err)

	entries := collect(t, w)
	assert.Equal(t, []string{"docs", "docs/readme.md", "keep.txt", "logs"}, keys(entries))
}

func TestWalkIgnoreDirOnlyPattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "cache", "a file named like a dir pattern")
	writeFile(t, root, "sub/cache/x", "y")

	w, err := NewWalker(root, Options{Ignore: []string{"**/cache/"}})
	require.NoError(t, err)

	entries := collect(t, w)
	assert.Equal(t, []string{"cache", "sub"}, keys(entries))
}

func TestWalkSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	root := t.TempDir()
	writeFile(t, root, "target.txt", "content")
	writeFile(t, root, "dir/inner.txt", "inner")
	require.NoError(t, os.Symlink("target.txt", filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink("dir", filepath.Join(root, "dirlink")))
	require.NoError(t, os.Symlink("nowhere", filepath.Join(root, "dangling")))

	w, err := NewWalker(root, Options{})
	require.NoError(t, err)

	entries := collect(t, w)
	assert.Equal(t, []string{"dir", "dir/inner.txt", "dirlink", "link.txt", "target.txt"}, keys(entries))

	link := entries["link.txt"]
	assert.True(t, link.Symlink)
	assert.False(t, link.IsDir)
	assert.Equal(t, int64(7), link.Size)

	dirlink := entries["dirlink"]
	assert.True(t, dirlink.Symlink)
	assert.True(t, dirlink.IsDir)
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a", "1")
	writeFile(t, root, "b", "2")

	w, err := NewWalker(root, Options{})
	require.NoError(t, err)

	stop := assert.AnError
	calls := 0
	err = w.Walk(context.Background(), func(Entry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a", "1")

	w, err := NewWalker(root, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = w.Walk(ctx, func(Entry) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewWalkerErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file", "x")

	_, err := NewWalker(filepath.Join(root, "missing"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewWalker(filepath.Join(root, "file"), Options{})
	assert.ErrorContains(t, err, "not a directory")

	_, err = NewWalker(root, Options{Ignore: []string{"[unclosed"}})
	assert.ErrorContains(t, err, "invalid ignore pattern")
}

func TestJoinKey(t *testing.T) {
	tests := []struct {
		prefix string
		rel    string
		want   string
	}{
		{"", "file.txt", "file.txt"},
		{"backup", "file.txt", "backup/file.txt"},
		{"backup/", "dir/file.txt", "backup/dir/file.txt"},
		{"a/b", filepath.Join("c", "d.txt"), "a/b/c/d.txt"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinKey(tt.prefix, tt.rel))
	}
}
