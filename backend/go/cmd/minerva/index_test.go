package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gobwas/glob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"a.pdf", "b.md", "c.png", "sub/d.pdf", ".git/e.pdf"} {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}
	supported := func(p string) bool { return !strings.HasSuffix(p, ".png") }

	files, err := collectFiles(root, nil, supported)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.pdf"),
		filepath.Join(root, "b.md"),
		filepath.Join(root, "sub", "d.pdf"),
	}, files)

	files, err = collectFiles(root, glob.MustCompile("*.pdf"), supported)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(root, "a.pdf"), filepath.Join(root, "sub", "d.pdf")}, files)

	single := filepath.Join(root, "b.md")
	files, err = collectFiles(single, glob.MustCompile("*.pdf"), supported)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	_, err = collectFiles(filepath.Join(root, "missing"), nil, supported)
	assert.Error(t, err)
}
