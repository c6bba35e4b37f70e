package backup

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/treeaudit/pkg/errors"
)

// progressInterval is how often, in uploaded files, progress is logged.
const progressInterval = 10

// Uploader stores objects remotely.
type Uploader interface {
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, obj Object) error
}

// Result describes the outcome of a backup.
type Result struct {
	Uploaded    int
	Failed      []string
	Interrupted bool
}

// Run uploads `objects`. A failed upload is logged and the remaining objects
// are still attempted. Cancelling `ctx` stops the backup after the current
// upload.
func Run(ctx context.Context, uploader Uploader, objects []Object) (Result, error) {
	var result Result
	if err := uploader.EnsureBucket(ctx); err != nil {
		return result, errors.WithContext(err, "ensure bucket")
	}

	for _, obj := range objects {
		if ctx.Err() != nil {
			result.Interrupted = true
			log.WithField("uploaded", result.Uploaded).Warn("Backup interrupted by user")
			return result, errors.ErrInterrupted
		}

		log.WithField("key", obj.Key).Debug("Uploading")
		if err := uploader.Upload(ctx, obj); err != nil {
			log.WithError(err).WithField("path", obj.LocalPath).Error("Failed to upload")
			result.Failed = append(result.Failed, obj.LocalPath)
			continue
		}

		result.Uploaded++
		if result.Uploaded%progressInterval == 0 {
			log.Infof("Uploaded %d files so far...", result.Uploaded)
		}
	}

	if len(result.Failed) != 0 {
		return result, errors.PartialFailure{Op: "backup", Failed: result.Failed}
	}
	return result, nil
}
