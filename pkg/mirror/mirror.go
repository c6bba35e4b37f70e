package mirror

import (
	"context"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
	"github.com/sidkik/treeaudit/pkg/tree"
)

// Mirror syncs a destination tree to match a source tree.
type Mirror struct {
	fs afero.Fs
}

// Plan is the set of operations needed to mirror the source into the
// destination.
type Plan struct {
	// ToCopy are the children of the source root, all of which are copied.
	ToCopy []tree.Entry

	// ToRemove are the names of destination children that also exist in the
	// source, and so must be removed before copying.
	ToRemove []string

	// Unreadable are the source children that couldn't be stat'ed, such as
	// broken symlinks. They can't be copied.
	Unreadable []tree.EntryError
}

// Result describes the outcome of a sync.
type Result struct {
	Copied   []string
	Replaced []string
	Failed   []string

	// Interrupted is set if the sync stopped early because its context was
	// cancelled.
	Interrupted bool
}

// New creates a Mirror operating on `fs`.
func New(fs afero.Fs) *Mirror {
	return &Mirror{fs: fs}
}

// Sync mirrors `src` into `dst`, and returns whether every child was synced.
// Failures are logged.
func (m *Mirror) Sync(ctx context.Context, src, dst string) bool {
	result, err := m.SyncWithResult(ctx, src, dst)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"source":      src,
			"destination": dst,
			"copied":      len(result.Copied),
		}).Error("Failed to replace model files")
		return false
	}

	log.WithFields(log.Fields{
		"copied":   len(result.Copied),
		"replaced": len(result.Replaced),
	}).Debug("Model files successfully replaced")
	return true
}

// SyncWithResult mirrors `src` into `dst`. The source must exist. The
// destination is created if necessary.
//
// Every child is attempted even if earlier ones fail, in which case the
// returned error is a PartialFailure.
func (m *Mirror) SyncWithResult(ctx context.Context, src, dst string) (Result, error) {
	if !tree.IsDir(m.fs, src) {
		return Result{}, errors.NotFoundError{Path: src}
	}

	if !tree.Exists(m.fs, dst) {
		if err := m.fs.MkdirAll(dst, 0755); err != nil {
			return Result{}, errors.WithContext(err, "create destination")
		}
		log.WithField("path", dst).Info("Created destination directory")
	}

	plan, err := m.Plan(src, dst)
	if err != nil {
		return Result{}, errors.WithContext(err, "plan")
	}

	toRemove := map[string]bool{}
	for _, name := range plan.ToRemove {
		toRemove[name] = true
	}

	var result Result
	for _, child := range plan.Unreadable {
		log.WithError(child.Err).WithField("path", filepath.Join(src, child.Path)).Error(
			"Failed to copy model")
		result.Failed = append(result.Failed, child.Path)
	}

	for _, child := range plan.ToCopy {
		if ctx.Err() != nil {
			result.Interrupted = true
			remaining := len(plan.ToCopy) + len(plan.Unreadable) - len(result.Copied) - len(result.Failed)
			log.WithField("remaining", remaining).Warn(
				"Model sync interrupted")
			return result, errors.ErrInterrupted
		}

		srcPath := filepath.Join(src, child.Name)
		dstPath := filepath.Join(dst, child.Name)
		if err := m.replace(srcPath, dstPath, toRemove[child.Name]); err != nil {
			log.WithError(err).WithField("path", srcPath).Error("Failed to copy model")
			result.Failed = append(result.Failed, child.Name)
			continue
		}

		if toRemove[child.Name] {
			result.Replaced = append(result.Replaced, child.Name)
		}
		result.Copied = append(result.Copied, child.Name)
		log.WithFields(log.Fields{
			"name": child.Name,
			"kind": child.Kind,
		}).Debug("Copied model")
	}

	if len(result.Failed) != 0 {
		return result, errors.PartialFailure{Op: "mirror", Failed: result.Failed}
	}
	return result, nil
}

// Plan diffs the children of `src` and `dst` by name.
func (m *Mirror) Plan(src, dst string) (Plan, error) {
	srcChildren, unreadable, err := tree.ListChildrenWithSkipped(m.fs, src)
	if err != nil {
		return Plan{}, errors.WithContext(err, "list source")
	}

	dstNames := map[string]bool{}
	if tree.Exists(m.fs, dst) {
		dstChildren, err := tree.ListChildren(m.fs, dst)
		if err != nil {
			return Plan{}, errors.WithContext(err, "list destination")
		}
		for _, child := range dstChildren {
			dstNames[child.Name] = true
		}
	}

	plan := Plan{ToCopy: srcChildren, Unreadable: unreadable}
	for _, child := range srcChildren {
		if dstNames[child.Name] {
			plan.ToRemove = append(plan.ToRemove, child.Name)
		}
	}
	return plan, nil
}

func (m *Mirror) replace(srcPath, dstPath string, exists bool) error {
	// The child may also exist as a broken symlink that ListChildren skipped.
	if exists || m.lexists(dstPath) {
		if err := m.fs.RemoveAll(dstPath); err != nil {
			return errors.WithContext(err, "remove stale copy")
		}
	}
	return errors.WithContext(copyPath(m.fs, srcPath, dstPath), "copy")
}

func (m *Mirror) lexists(path string) bool {
	if lstater, ok := m.fs.(afero.Lstater); ok {
		_, _, err := lstater.LstatIfPossible(path)
		return err == nil
	}
	return tree.Exists(m.fs, path)
}
