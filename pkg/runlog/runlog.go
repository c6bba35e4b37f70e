// Package runlog records log entries to dated files so that unattended runs,
// such as scheduled backups, leave a trail behind.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
	"github.com/sidkik/treeaudit/pkg/version"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// fileFormatter formats entries as one JSON object per line.
var fileFormatter = &logrus.JSONFormatter{
	FieldMap: logrus.FieldMap{
		logrus.FieldKeyTime:  "timestamp",
		logrus.FieldKeyLevel: "level",
		logrus.FieldKeyMsg:   "message",
	},
}

// Hook appends log entries to `<dir>/<prefix>_YYYYMMDD.log`. A new file is
// started when the date changes.
type Hook struct {
	dir    string
	prefix string
	clock  clockwork.Clock
	levels []logrus.Level

	mu   sync.Mutex
	day  string
	file afero.File
}

// NewHook creates a hook that records entries at Info level and above.
func NewHook(dir, prefix string, clock clockwork.Clock) (*Hook, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WithContext(err, "create log directory")
	}

	return &Hook{
		dir:    dir,
		prefix: prefix,
		clock:  clock,
		levels: []logrus.Level{
			logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel,
			logrus.WarnLevel, logrus.InfoLevel,
		},
	}, nil
}

// Path returns the file that entries logged now are written to.
func (h *Hook) Path() string {
	return filepath.Join(h.dir, fmt.Sprintf("%s_%s.log", h.prefix, h.clock.Now().Format("20060102")))
}

func (h *Hook) Levels() []logrus.Level {
	return h.levels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	data := logrus.Fields{"version": version.Version}
	for k, v := range entry.Data {
		data[k] = v
	}

	// Copy the entry so that the fields added here don't show up in other
	// hooks or the terminal output.
	entryCopy := *entry
	entryCopy.Data = data

	line, err := fileFormatter.Format(&entryCopy)
	if err != nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := h.current()
	if err != nil {
		// Returning an error causes logrus to print it to stderr on every
		// entry, so fail quietly instead.
		return nil
	}
	_, _ = f.Write(line)
	return nil
}

// Close closes the current log file.
func (h *Hook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

func (h *Hook) current() (afero.File, error) {
	day := h.clock.Now().Format("20060102")
	if h.file != nil && day == h.day {
		return h.file, nil
	}

	if h.file != nil {
		h.file.Close()
		h.file = nil
	}

	f, err := fs.OpenFile(h.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	h.file = f
	h.day = day
	return f, nil
}
