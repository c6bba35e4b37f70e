package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/treeaudit/pkg/errors"
)

// symlinkTree creates a tree on the real filesystem, since MemMapFs doesn't
// support symlinks:
//
//	root/
//	  BROKEN.DOCX -> missing
//	  DIR LINK -> target
//	  FILE LINK.DOCX -> target/MODELO.DOCX
//	  target/MODELO.DOCX
func symlinkTree(t *testing.T) string {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "target", "MODELO.DOCX"),
		[]byte("modelo"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"),
		filepath.Join(root, "BROKEN.DOCX")))
	require.NoError(t, os.Symlink(filepath.Join(root, "target"),
		filepath.Join(root, "DIR LINK")))
	require.NoError(t, os.Symlink(filepath.Join(root, "target", "MODELO.DOCX"),
		filepath.Join(root, "FILE LINK.DOCX")))
	return root
}

func TestListChildrenSymlinks(t *testing.T) {
	root := symlinkTree(t)
	fs := afero.NewOsFs()

	children, skipped, err := ListChildrenWithSkipped(fs, root)
	require.NoError(t, err)

	require.Len(t, children, 3)
	assert.Equal(t, "DIR LINK", children[0].Name)
	assert.Equal(t, KindDir, children[0].Kind)

	// Symlinks are resolved, but keep the link's name.
	assert.Equal(t, "FILE LINK.DOCX", children[1].Name)
	assert.Equal(t, KindFile, children[1].Kind)
	assert.Equal(t, int64(len("modelo")), children[1].SizeBytes)

	assert.Equal(t, "target", children[2].Name)

	require.Len(t, skipped, 1)
	assert.Equal(t, "BROKEN.DOCX", skipped[0].Path)
	var notFound errors.NotFoundError
	assert.True(t, errors.As(skipped[0].Err, &notFound))

	// ListChildren logs the broken link and omits it.
	logged, err := ListChildren(fs, root)
	require.NoError(t, err)
	assert.Equal(t, children, logged)
}

func TestWalkerSymlinks(t *testing.T) {
	root := symlinkTree(t)

	w := NewWalker(afero.NewOsFs(), root)
	assert.Equal(t, []string{
		"DIR LINK",
		"FILE LINK.DOCX",
		"target",
		"target/MODELO.DOCX",
	}, walkPaths(w), "symlinked directories shouldn't be descended into")
	assert.NoError(t, w.Err())

	require.Len(t, w.Skipped(), 1)
	assert.Equal(t, "BROKEN.DOCX", w.Skipped()[0].Path)
}

func TestWalkerSymlinkCycle(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "A"), 0755))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "A", "LOOP")))

	w := NewWalker(afero.NewOsFs(), root)
	assert.Equal(t, []string{"A", "A/LOOP"}, walkPaths(w))
	assert.NoError(t, w.Err())
	assert.Empty(t, w.Skipped())
}
