// Package backup uploads a directory tree to S3-compatible object storage.
//
// A backup is done in two steps. Collect walks the directory and produces the
// flat list of files to upload along with their object keys. Run then uploads
// them one at a time.
package backup

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
	"github.com/sidkik/treeaudit/pkg/tree"
)

const keyTimeFormat = "20060102_150405"

// ignoredFiles are never backed up, in addition to hidden files.
var ignoredFiles = map[string]bool{
	"Thumbs.db":   true,
	"desktop.ini": true,
	".DS_Store":   true,
}

// Object is a local file and the key it's uploaded to.
type Object struct {
	LocalPath string
	Key       string
	SizeBytes int64
}

// CollectOptions limits which files are collected.
type CollectOptions struct {
	// MaxFiles caps the number of collected files. Zero means no cap.
	MaxFiles int

	// MaxFileBytes is the size above which files are skipped. Zero means no
	// limit.
	MaxFileBytes int64

	// Now is used to timestamp the backup prefix.
	Now time.Time
}

// KeyPrefix returns the prefix under which a backup of `dir` taken at `now`
// is stored.
func KeyPrefix(dir string, now time.Time) string {
	return fmt.Sprintf("%s_%s", filepath.Base(filepath.Clean(dir)), now.Format(keyTimeFormat))
}

// Collect returns the files beneath `dir` that should be backed up. Keys are
// of the form "<dir name>_<timestamp>/<dir name>/<path within dir>".
func Collect(fs afero.Fs, dir string, opts CollectOptions) ([]Object, error) {
	if !tree.IsDir(fs, dir) {
		return nil, errors.NotFoundError{Path: dir}
	}

	prefix := KeyPrefix(dir, opts.Now)
	base := filepath.Base(filepath.Clean(dir))

	var objects []Object
	w := tree.NewWalker(fs, dir)
	for entry, ok := w.Next(); ok; entry, ok = w.Next() {
		if skip(entry.Name) {
			w.SkipDir()
			continue
		}
		if entry.IsDir() {
			continue
		}

		localPath := filepath.Join(dir, entry.Path)
		if opts.MaxFileBytes > 0 && entry.SizeBytes > opts.MaxFileBytes {
			log.WithFields(log.Fields{
				"path":  localPath,
				"bytes": entry.SizeBytes,
			}).Warn("Skipping large file")
			continue
		}

		if opts.MaxFiles > 0 && len(objects) >= opts.MaxFiles {
			log.WithField("max", opts.MaxFiles).Info("Reached maximum file limit. Stopping backup.")
			break
		}

		objects = append(objects, Object{
			LocalPath: localPath,
			Key:       strings.Join([]string{prefix, base, filepath.ToSlash(entry.Path)}, "/"),
			SizeBytes: entry.SizeBytes,
		})
	}

	if err := w.Err(); err != nil {
		return nil, errors.WithContext(err, "walk")
	}
	return objects, nil
}

func skip(name string) bool {
	return strings.HasPrefix(name, ".") || ignoredFiles[name]
}
