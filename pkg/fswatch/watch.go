// Package fswatch notifies callers when anything beneath a directory changes.
package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Watcher sends an event on C whenever something beneath its root changes.
// Bursts of changes are coalesced into a single event.
type Watcher struct {
	C <-chan struct{}

	watcher *fsnotify.Watcher
}

// Watch starts watching `root` and all of its subdirectories. Directories
// created after Watch returns are watched as well.
func Watch(root string) (*Watcher, error) {
	pathsToWatch, err := getPathsToWatch(root)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	go logErrors(watcher.Errors)
	return &Watcher{
		C:       combineUpdates(watcher.Events, watchNewDirs(watcher)),
		watcher: watcher,
	}, nil
}

// Close stops the watcher. C is closed once pending events are drained.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func combineUpdates(updates <-chan fsnotify.Event, onEvent func(fsnotify.Event)) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		defer close(combined)
		for event := range updates {
			if onEvent != nil {
				onEvent(event)
			}

			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// watchNewDirs returns a callback that adds newly created directories to
// `watcher`, since fsnotify doesn't watch recursively.
func watchNewDirs(watcher *fsnotify.Watcher) func(fsnotify.Event) {
	return func(event fsnotify.Event) {
		if !event.Has(fsnotify.Create) || ignored(filepath.Base(event.Name)) {
			return
		}

		paths, err := getPathsToWatch(event.Name)
		if err != nil {
			// The path was most likely removed again before we got to it.
			log.WithError(err).WithField("path", event.Name).Debug("Failed to watch new path")
			return
		}

		for _, path := range paths {
			if err := watcher.Add(path); err != nil {
				log.WithError(err).WithField("path", path).Warn("Failed to watch new directory")
			}
		}
	}
}

func logErrors(errs <-chan error) {
	for err := range errs {
		log.WithError(err).Warn("File watcher error")
	}
}

// getPathsToWatch returns `root` and its subdirectories. fsnotify reports
// changes to a directory's direct children, so watching every directory is
// enough to notice changes to any file.
func getPathsToWatch(root string) (paths []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if !fi.IsDir() {
		return nil, nil
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if !fi.IsDir() {
			return nil
		}

		if path != root && ignored(fi.Name()) {
			return filepath.SkipDir
		}

		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// ignored returns whether changes to hidden entries, such as version control
// metadata, should be ignored.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".")
}
