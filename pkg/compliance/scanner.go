// Package compliance audits a directory tree against the folder naming
// conventions and reports folders that have gone inactive or grown too large.
//
// Scans are read-only. An entry that can't be read is logged and left out of
// the results, so a broken symlink or an unreadable subtree never aborts a
// scan. Only a root that can't be read is returned as an error.
package compliance

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
	"github.com/sidkik/treeaudit/pkg/tree"
)

const bytesPerMB = 1024 * 1024

// Options configures which entries the Scanner ignores.
type Options struct {
	// ExcludedNames are skipped at the top level, and any entry beneath a
	// path segment with one of these names is skipped by ScanNamingIssues.
	ExcludedNames []string

	// SystemFiles are skipped at the top level.
	SystemFiles []string
}

// Scanner classifies the entries of a directory tree.
type Scanner struct {
	fs    afero.Fs
	clock clockwork.Clock

	excluded map[string]struct{}
	system   map[string]struct{}
}

// InactivityRecord is the activity state of a top-level folder.
type InactivityRecord struct {
	Name     string
	Inactive bool

	// LastModified is the newest modification time of any file beneath the
	// folder. It's zero if the folder has no files.
	LastModified time.Time
}

// New creates a Scanner.
func New(fs afero.Fs, opts Options, clock clockwork.Clock) *Scanner {
	return &Scanner{
		fs:       fs,
		clock:    clock,
		excluded: toSet(opts.ExcludedNames),
		system:   toSet(opts.SystemFiles),
	}
}

// ListTopLevelNonconforming returns the names of the children of `root` that
// don't end with a numbered suffix such as "(123)".
func (s *Scanner) ListTopLevelNonconforming(root string) ([]string, error) {
	children, err := tree.ListChildren(s.fs, root)
	if err != nil {
		return nil, errors.WithContext(err, "list top level")
	}

	var nonconforming []string
	for _, child := range children {
		if s.isExcluded(child.Name) {
			continue
		}

		if !HasNumberedSuffix(child.Name) {
			nonconforming = append(nonconforming, child.Name)
		}
	}
	return nonconforming, nil
}

// ScanNamingIssues classifies every entry beneath `root`. Subtrees rooted at
// an excluded name are skipped entirely.
func (s *Scanner) ScanNamingIssues(root string) (Report, error) {
	report := Report{}
	w := tree.NewWalker(s.fs, root)
	for entry, ok := w.Next(); ok; entry, ok = w.Next() {
		if _, ok := s.excluded[entry.Name]; ok {
			w.SkipDir()
			continue
		}

		for _, category := range Classify(entry.Name, entry.Kind) {
			report.add(category, entry.Path)
		}
	}

	if err := w.Err(); err != nil {
		return nil, errors.WithContext(err, "walk")
	}

	if skipped := w.Skipped(); len(skipped) != 0 {
		log.WithField("count", len(skipped)).Warn(
			"Some entries couldn't be read and weren't checked for naming issues")
	}
	return report, nil
}

// FindInactiveFolders returns the folders directly beneath `root` in which no
// file was modified within the last `thresholdDays` days. Folders without any
// files are inactive.
func (s *Scanner) FindInactiveFolders(root string, excludedFolders []string,
	thresholdDays int) ([]string, error) {

	records, err := s.InactivityRecords(root, excludedFolders, thresholdDays)
	if err != nil {
		return nil, err
	}

	var inactive []string
	for _, record := range records {
		if record.Inactive {
			inactive = append(inactive, record.Name)
		}
	}
	return inactive, nil
}

// InactivityRecords returns the activity state of each folder directly
// beneath `root`. Folders that can't be read are logged and reported as
// active.
func (s *Scanner) InactivityRecords(root string, excludedFolders []string,
	thresholdDays int) ([]InactivityRecord, error) {

	folders, err := s.topLevelFolders(root, excludedFolders)
	if err != nil {
		return nil, errors.WithContext(err, "list folders")
	}

	cutoff := s.clock.Now().Add(-time.Duration(thresholdDays) * 24 * time.Hour)

	var records []InactivityRecord
	for _, folder := range folders {
		path := filepath.Join(root, folder.Name)
		files, _, err := tree.Files(s.fs, path)
		if err != nil {
			log.WithError(err).WithField("folder", path).Error(
				"Failed to check folder for recent modifications")
			records = append(records, InactivityRecord{Name: folder.Name})
			continue
		}

		var newest time.Time
		for _, f := range files {
			if f.ModTime.After(newest) {
				newest = f.ModTime
			}
		}

		records = append(records, InactivityRecord{
			Name:         folder.Name,
			Inactive:     !newest.After(cutoff),
			LastModified: newest,
		})
	}
	return records, nil
}

// FolderSizes returns the total size of the files beneath each folder
// directly inside `root`, truncated to whole megabytes.
func (s *Scanner) FolderSizes(root string, excludedNames []string) (map[string]int64, error) {
	children, err := tree.ListChildren(s.fs, root)
	if err != nil {
		return nil, errors.WithContext(err, "list folders")
	}

	excluded := toSet(excludedNames)
	sizes := map[string]int64{}
	for _, child := range children {
		if _, ok := excluded[child.Name]; ok || !child.IsDir() {
			continue
		}

		path := filepath.Join(root, child.Name)
		files, _, err := tree.Files(s.fs, path)
		if err != nil {
			log.WithError(err).WithField("folder", path).Error(
				"Failed to calculate folder size")
			continue
		}

		var total int64
		for _, f := range files {
			total += f.SizeBytes
		}
		sizes[child.Name] = total / bytesPerMB
	}
	return sizes, nil
}

func (s *Scanner) topLevelFolders(root string, extraExcluded []string) ([]tree.Entry, error) {
	children, err := tree.ListChildren(s.fs, root)
	if err != nil {
		return nil, err
	}

	extra := toSet(extraExcluded)
	var folders []tree.Entry
	for _, child := range children {
		if !child.IsDir() || s.isExcluded(child.Name) {
			continue
		}
		if _, ok := extra[child.Name]; ok {
			continue
		}
		folders = append(folders, child)
	}
	return folders, nil
}

func (s *Scanner) isExcluded(name string) bool {
	_, excluded := s.excluded[name]
	_, system := s.system[name]
	return excluded || system
}

func toSet(names []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}
