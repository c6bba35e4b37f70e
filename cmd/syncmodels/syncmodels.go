package syncmodels

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/treeaudit/cmd/report"
	"github.com/sidkik/treeaudit/cmd/util"
	"github.com/sidkik/treeaudit/pkg/errors"
	"github.com/sidkik/treeaudit/pkg/fswatch"
	"github.com/sidkik/treeaudit/pkg/lock"
)

// New creates a new `sync` command.
func New() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replace the working model files with the master copies",
		Long: "Replace every entry in the working models directory that also\n" +
			"exists in the master models directory with a fresh copy.\n" +
			"Entries that only exist in the working directory are kept.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(watch); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false,
		"Keep running, and sync again whenever the master models change")
	return cmd
}

func run(watch bool) error {
	steps, cfg, err := report.Load()
	if err != nil {
		return err
	}

	l, err := lock.Acquire(cfg.LockPath)
	if err != nil {
		return errors.WithContext(err, "acquire lock")
	}
	defer l.Release()

	ctx, cancel := util.SignalContext()
	defer cancel()

	if !watch {
		return steps.ModelFiles(ctx)
	}

	watcher, err := fswatch.Watch(cfg.ModelSourceDir)
	if err != nil {
		return errors.WithContext(err, "watch models")
	}
	defer watcher.Close()

	return syncOnChange(ctx, watcher.C, func(ctx context.Context) error {
		return steps.ModelFiles(ctx)
	})
}

// syncOnChange syncs once, and then again after every change until `ctx` is
// cancelled. Failed syncs are logged and retried on the next change.
func syncOnChange(ctx context.Context, changes <-chan struct{},
	sync func(context.Context) error) error {

	for {
		err := sync(ctx)
		if errors.Is(err, errors.ErrInterrupted) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.WithError(err).Error("Failed to sync models. Will retry on the next change.")
		}

		log.Info("Watching the master models for changes. Press Ctrl+C to stop.")
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return errors.New("file watcher stopped unexpectedly")
			}
		}
	}
}
