package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/treeaudit/pkg/errors"
	"github.com/sidkik/treeaudit/pkg/tree"
)

type mockFile struct {
	path     string
	contents string
	modTime  time.Time
}

func (f mockFile) writeToFs(t *testing.T, fs afero.Fs) {
	require.NoError(t, fs.MkdirAll(filepath.Dir(f.path), 0755))
	require.NoError(t, afero.WriteFile(fs, f.path, []byte(f.contents), 0644))
	modTime := f.modTime
	if modTime.IsZero() {
		modTime = time.Date(2024, 11, 10, 8, 30, 0, 0, time.UTC)
	}
	require.NoError(t, fs.Chtimes(f.path, modTime, modTime))
}

type snapshotFile struct {
	kind     tree.Kind
	contents string
	modTime  time.Time
}

// snapshot captures everything beneath `root` that a sync is expected to
// preserve.
func snapshot(t *testing.T, fs afero.Fs, root string) map[string]snapshotFile {
	files := map[string]snapshotFile{}
	w := tree.NewWalker(fs, root)
	for entry, ok := w.Next(); ok; entry, ok = w.Next() {
		f := snapshotFile{kind: entry.Kind}
		if !entry.IsDir() {
			contents, err := afero.ReadFile(fs, filepath.Join(root, entry.Path))
			require.NoError(t, err)
			f.contents = string(contents)
			f.modTime = entry.ModTime
		}
		files[entry.Path] = f
	}
	require.NoError(t, w.Err())
	return files
}

func paths(files map[string]snapshotFile) (paths []string) {
	for path := range files {
		paths = append(paths, path)
	}
	return paths
}

func TestSyncReplacesMatchingChildren(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, f := range []mockFile{
		{path: "/src/A/x.txt", contents: "x"},
		{path: "/src/B.txt", contents: "b"},
		{path: "/dst/A/old.txt", contents: "old"},
		{path: "/dst/C.txt", contents: "c"},
	} {
		f.writeToFs(t, fs)
	}
	srcBefore := snapshot(t, fs, "/src")

	result, err := New(fs).SyncWithResult(context.Background(), "/src", "/dst")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B.txt"}, result.Copied)
	assert.Equal(t, []string{"A"}, result.Replaced)
	assert.Empty(t, result.Failed)

	dst := snapshot(t, fs, "/dst")
	assert.ElementsMatch(t, []string{"A", "A/x.txt", "B.txt", "C.txt"}, paths(dst))
	assert.Equal(t, "x", dst["A/x.txt"].contents)
	assert.Equal(t, "b", dst["B.txt"].contents)
	assert.Equal(t, "c", dst["C.txt"].contents)

	assert.Equal(t, srcBefore, snapshot(t, fs, "/src"), "the source must not change")
}

func TestSyncIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, f := range []mockFile{
		{path: "/src/MODELO PETICAO.DOCX", contents: "peticao"},
		{path: "/src/CONTRATOS/HONORARIOS.DOCX", contents: "honorarios"},
		{path: "/src/CONTRATOS/SUB/PROCURACAO.DOCX", contents: "procuracao"},
		{path: "/dst/EXTRA.TXT", contents: "extra"},
	} {
		f.writeToFs(t, fs)
	}

	m := New(fs)
	require.True(t, m.Sync(context.Background(), "/src", "/dst"))
	first := snapshot(t, fs, "/dst")

	require.True(t, m.Sync(context.Background(), "/src", "/dst"))
	assert.Equal(t, first, snapshot(t, fs, "/dst"))
}

func TestSyncConverges(t *testing.T) {
	source := []mockFile{
		{path: "/src/A/x.txt", contents: "x"},
		{path: "/src/A/sub/y.txt", contents: "y"},
		{path: "/src/B", contents: "b"},
	}

	tests := []struct {
		name     string
		existing []mockFile
	}{
		{
			name: "Empty destination",
		},
		{
			name: "Stale files inside a directory",
			existing: []mockFile{
				{path: "/dst/A/x.txt", contents: "stale x"},
				{path: "/dst/A/stale.txt", contents: "stale"},
				{path: "/dst/A/sub/z.txt", contents: "stale z"},
			},
		},
		{
			name: "Kinds swapped",
			existing: []mockFile{
				{path: "/dst/A", contents: "was a file"},
				{path: "/dst/B/inner.txt", contents: "was a directory"},
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for _, f := range append(append([]mockFile{}, source...), test.existing...) {
				f.writeToFs(t, fs)
			}
			require.NoError(t, fs.MkdirAll("/dst", 0755))

			assert.True(t, New(fs).Sync(context.Background(), "/src", "/dst"))
			assert.Equal(t, snapshot(t, fs, "/src"), snapshot(t, fs, "/dst"))
		})
	}
}

func TestSyncPreservesModTime(t *testing.T) {
	modTime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	fs := afero.NewMemMapFs()
	mockFile{path: "/src/A.DOCX", contents: "a", modTime: modTime}.writeToFs(t, fs)

	require.True(t, New(fs).Sync(context.Background(), "/src", "/dst"))
	info, err := fs.Stat("/dst/A.DOCX")
	require.NoError(t, err)
	assert.True(t, modTime.Equal(info.ModTime()))
}

func TestSyncMissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()

	m := New(fs)
	_, err := m.SyncWithResult(context.Background(), "/src", "/dst")
	assert.Equal(t, errors.NotFoundError{Path: "/src"}, err)
	assert.False(t, m.Sync(context.Background(), "/src", "/dst"))

	exists, err := afero.Exists(fs, "/src")
	require.NoError(t, err)
	assert.False(t, exists, "the source must never be created")

	exists, err = afero.Exists(fs, "/dst")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSyncCreatesDestination(t *testing.T) {
	fs := afero.NewMemMapFs()
	mockFile{path: "/src/A.DOCX", contents: "a"}.writeToFs(t, fs)

	assert.True(t, New(fs).Sync(context.Background(), "/src", "/models/working/dst"))
	contents, err := afero.ReadFile(fs, "/models/working/dst/A.DOCX")
	require.NoError(t, err)
	assert.Equal(t, "a", string(contents))
}

// failingFs fails to create any file at the paths in `fail`.
type failingFs struct {
	afero.Fs
	fail map[string]bool
}

func (fs failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if fs.fail[filepath.Clean(name)] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return fs.Fs.OpenFile(name, flag, perm)
}

func TestSyncPartialFailure(t *testing.T) {
	memFs := afero.NewMemMapFs()
	for _, f := range []mockFile{
		{path: "/src/A.DOCX", contents: "a"},
		{path: "/src/B/B.DOCX", contents: "b"},
		{path: "/src/C.DOCX", contents: "c"},
	} {
		f.writeToFs(t, memFs)
	}
	fs := failingFs{memFs, map[string]bool{"/dst/B/B.DOCX": true}}

	m := New(fs)
	result, err := m.SyncWithResult(context.Background(), "/src", "/dst")
	assert.Equal(t, errors.PartialFailure{Op: "mirror", Failed: []string{"B"}}, err)
	assert.Equal(t, []string{"A.DOCX", "C.DOCX"}, result.Copied)
	assert.Equal(t, []string{"B"}, result.Failed)

	for _, path := range []string{"/dst/A.DOCX", "/dst/C.DOCX"} {
		exists, err := afero.Exists(memFs, path)
		require.NoError(t, err)
		assert.True(t, exists, path)
	}
	assert.False(t, m.Sync(context.Background(), "/src", "/dst"))
}

func TestSyncInterrupted(t *testing.T) {
	fs := afero.NewMemMapFs()
	mockFile{path: "/src/A.DOCX", contents: "a"}.writeToFs(t, fs)
	mockFile{path: "/dst/A.DOCX", contents: "old"}.writeToFs(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(fs).SyncWithResult(ctx, "/src", "/dst")
	assert.Equal(t, errors.ErrInterrupted, err)
	assert.True(t, result.Interrupted)
	assert.Empty(t, result.Copied)

	contents, err := afero.ReadFile(fs, "/dst/A.DOCX")
	require.NoError(t, err)
	assert.Equal(t, "old", string(contents), "nothing is rolled back or started")
}

func TestPlan(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, f := range []mockFile{
		{path: "/src/A/x.txt"},
		{path: "/src/B.txt"},
		{path: "/dst/A/old.txt"},
		{path: "/dst/C.txt"},
	} {
		f.writeToFs(t, fs)
	}

	plan, err := New(fs).Plan("/src", "/dst")
	require.NoError(t, err)

	var names []string
	for _, entry := range plan.ToCopy {
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"A", "B.txt"}, names)
	assert.Equal(t, []string{"A"}, plan.ToRemove)

	plan, err = New(fs).Plan("/src", "/missing")
	require.NoError(t, err)
	assert.Len(t, plan.ToCopy, 2)
	assert.Empty(t, plan.ToRemove)
}
