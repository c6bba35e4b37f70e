package mirror

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
)

// copyPath copies `src` to `dst`, recursing into directories. Symlinks are
// followed. Modes and modification times are preserved, except that copied
// directories are always owner-accessible.
func copyPath(fs afero.Fs, src, dst string) error {
	info, err := fs.Stat(src)
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	if info.IsDir() {
		return copyDir(fs, src, dst, info)
	}
	return copyFile(fs, src, dst, info)
}

// Copied directories always stay owner-accessible, so that the next sync can
// remove them even if the source directory is read-only.
const ownerAccess = 0700

func copyDir(fs afero.Fs, src, dst string, info os.FileInfo) error {
	perm := info.Mode().Perm() | ownerAccess
	if err := fs.MkdirAll(dst, perm); err != nil {
		return errors.WithContext(err, "mkdir")
	}

	children, err := afero.ReadDir(fs, src)
	if err != nil {
		return errors.WithContext(err, "read dir")
	}

	for _, child := range children {
		err := copyPath(fs, filepath.Join(src, child.Name()), filepath.Join(dst, child.Name()))
		if err != nil {
			return errors.WithContext(err, child.Name())
		}
	}

	if err := fs.Chmod(dst, perm); err != nil {
		return errors.WithContext(err, "chmod")
	}
	return errors.WithContext(fs.Chtimes(dst, info.ModTime(), info.ModTime()), "chtimes")
}

func copyFile(fs afero.Fs, src, dst string, info os.FileInfo) error {
	in, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.WithContext(err, "create")
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.WithContext(err, "write")
	}

	if err := out.Close(); err != nil {
		return errors.WithContext(err, "close")
	}

	if err := fs.Chmod(dst, info.Mode().Perm()); err != nil {
		return errors.WithContext(err, "chmod")
	}
	return errors.WithContext(fs.Chtimes(dst, info.ModTime(), info.ModTime()), "chtimes")
}
