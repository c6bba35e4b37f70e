// Package tree enumerates directory trees through an afero.Fs. It's the only
// place that lists directories, so every other package sees the same
// ordering, the same symlink handling and the same per-entry error policy:
// an entry that can't be read is recorded and skipped, and only a root that
// can't be read is an error.
package tree

import (
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
)

// Kind is the type of a filesystem node.
type Kind int

const (
	// KindFile is a regular file (or anything that isn't a directory).
	KindFile Kind = iota
	// KindDir is a directory.
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "directory"
	}
	return "file"
}

// Entry is a read-only snapshot of a filesystem node.
type Entry struct {
	Name string
	Kind Kind

	// Path is relative to the root that was enumerated.
	Path string

	SizeBytes int64
	ModTime   time.Time
}

// IsDir returns whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// EntryError records an entry that was skipped.
type EntryError struct {
	Path string
	Err  error
}

func (e EntryError) Error() string {
	return e.Err.Error()
}

// ListChildren returns the immediate children of `root`, sorted by name.
// Symlinks are resolved. Children that can't be stat'ed are logged and
// omitted.
func ListChildren(fs afero.Fs, root string) ([]Entry, error) {
	entries, skipped, err := ListChildrenWithSkipped(fs, root)
	for _, entryErr := range skipped {
		logSkipped(entryErr)
	}
	return entries, err
}

// ListChildrenWithSkipped is like ListChildren, but returns the children that
// couldn't be stat'ed, such as broken symlinks, instead of logging them.
func ListChildrenWithSkipped(fs afero.Fs, root string) ([]Entry, []EntryError, error) {
	infos, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, nil, errors.Classify(root, err)
	}

	var entries []Entry
	var skipped []EntryError
	for _, info := range infos {
		entry, _, err := newEntry(fs, root, "", info)
		if err != nil {
			entryErr, ok := err.(EntryError)
			if !ok {
				entryErr = EntryError{Path: info.Name(), Err: err}
			}
			skipped = append(skipped, entryErr)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, skipped, nil
}

// Exists returns whether `path` exists.
func Exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// IsDir returns whether `path` exists and is a directory.
func IsDir(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.IsDir()
}

// newEntry converts the directory listing result `info`, found in the
// directory `rel` beneath `root`, into an Entry. The returned bool is whether
// the entry should be descended into. Symlinked directories are reported as
// directories but never descended into, which keeps walks free of cycles.
func newEntry(fs afero.Fs, root, rel string, info os.FileInfo) (Entry, bool, error) {
	relPath := filepath.Join(rel, info.Name())
	descend := info.IsDir()

	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := fs.Stat(filepath.Join(root, relPath))
		if err != nil {
			return Entry{}, false, EntryError{
				Path: relPath,
				Err:  errors.Classify(relPath, err),
			}
		}
		info = resolved
		descend = false
	}

	kind := KindFile
	if info.IsDir() {
		kind = KindDir
	}

	return Entry{
		Name:      info.Name(),
		Kind:      kind,
		Path:      relPath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, descend, nil
}

func logSkipped(err error) {
	entry := log.WithError(err)
	if entryErr, ok := err.(EntryError); ok {
		entry = log.WithError(entryErr.Err).WithField("path", entryErr.Path)
	}
	entry.Warn("Skipping entry that couldn't be read")
}
