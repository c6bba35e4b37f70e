package tree

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
)

// Walker lazily enumerates every entry beneath a root, depth first, in
// lexical order. Directories are only read when the walk reaches them, so
// memory stays proportional to the depth of the tree rather than its size.
//
//	w := tree.NewWalker(fs, root)
//	for entry, ok := w.Next(); ok; entry, ok = w.Next() {
//		...
//	}
//	if err := w.Err(); err != nil {
//		...
//	}
type Walker struct {
	fs   afero.Fs
	root string

	started bool
	stack   []frame

	// pending is the directory returned by the last call to Next. It's read
	// on the following call unless SkipDir is called first.
	pending *Entry

	err     error
	skipped []EntryError
}

type frame struct {
	rel      string
	children []os.FileInfo
}

// NewWalker creates a Walker over `root`.
func NewWalker(fs afero.Fs, root string) *Walker {
	return &Walker{fs: fs, root: root}
}

// Root returns the root the walker enumerates.
func (w *Walker) Root() string {
	return w.root
}

// Next returns the next entry. It returns false once the walk is complete, or
// if the root couldn't be read.
func (w *Walker) Next() (Entry, bool) {
	if !w.started {
		w.started = true
		infos, err := afero.ReadDir(w.fs, w.root)
		if err != nil {
			w.err = errors.Classify(w.root, err)
			return Entry{}, false
		}
		w.stack = append(w.stack, frame{children: infos})
	}

	if w.pending != nil {
		w.push(*w.pending)
		w.pending = nil
	}

	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		if len(top.children) == 0 {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}

		info := top.children[0]
		top.children = top.children[1:]

		entry, descend, err := newEntry(w.fs, w.root, top.rel, info)
		if err != nil {
			w.skip(err.(EntryError))
			continue
		}

		if descend {
			w.pending = &entry
		}
		return entry, true
	}
	return Entry{}, false
}

// SkipDir prevents the walker from descending into the directory returned by
// the last call to Next. It's a no-op if that entry wasn't a directory.
func (w *Walker) SkipDir() {
	w.pending = nil
}

// Err returns the error that stopped the walk, if any. Errors on individual
// entries don't stop the walk; they're available through Skipped.
func (w *Walker) Err() error {
	return w.err
}

// Skipped returns the entries that were skipped because they couldn't be read.
func (w *Walker) Skipped() []EntryError {
	return w.skipped
}

// Reset restarts the walk from the root. Entries are re-read from the
// filesystem, so changes since the previous walk are reflected.
func (w *Walker) Reset() {
	*w = Walker{fs: w.fs, root: w.root}
}

func (w *Walker) push(dir Entry) {
	infos, err := afero.ReadDir(w.fs, filepath.Join(w.root, dir.Path))
	if err != nil {
		w.skip(EntryError{
			Path: dir.Path,
			Err:  errors.Classify(dir.Path, err),
		})
		return
	}
	w.stack = append(w.stack, frame{rel: dir.Path, children: infos})
}

func (w *Walker) skip(err EntryError) {
	logSkipped(err)
	w.skipped = append(w.skipped, err)
}

// Files returns the walked file entries beneath `root`. It's a convenience for
// callers that only care about files.
func Files(fs afero.Fs, root string) ([]Entry, []EntryError, error) {
	var files []Entry
	w := NewWalker(fs, root)
	for entry, ok := w.Next(); ok; entry, ok = w.Next() {
		if !entry.IsDir() {
			files = append(files, entry)
		}
	}
	return files, w.Skipped(), w.Err()
}
