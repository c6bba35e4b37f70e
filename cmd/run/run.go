package run

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/treeaudit/cmd/report"
	"github.com/sidkik/treeaudit/cmd/util"
	"github.com/sidkik/treeaudit/pkg/errors"
	"github.com/sidkik/treeaudit/pkg/lock"
)

// New creates a new `run` command.
func New() *cobra.Command {
	var logDir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full audit and refresh the model files",
		Long: "Report inactive and oversized folders, replace the working model\n" +
			"files with the master copies, and report naming issues.\n\n" +
			"A failed step is logged and the remaining steps still run.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(logDir); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&logDir, "log-dir", "",
		"Also record the log to a dated file in this directory")
	return cmd
}

type step struct {
	name string
	fn   func(context.Context) error
}

func run(logDir string) error {
	stopRecording, err := util.RecordLog(logDir, "treeaudit")
	if err != nil {
		return err
	}
	defer stopRecording()

	steps, cfg, err := report.Load()
	if err != nil {
		return err
	}

	l, err := lock.Acquire(cfg.LockPath)
	if err != nil {
		return errors.WithContext(err, "acquire lock")
	}
	defer l.Release()

	for _, err := range cfg.Validate() {
		log.WithError(err).Warn("Required directory is missing")
	}

	ctx, cancel := util.SignalContext()
	defer cancel()

	return runSteps(ctx, []step{
		{"check inactive folders", ignoreContext(steps.InactiveFolders)},
		{"analyze folder sizes", ignoreContext(steps.FolderSizes)},
		{"replace model files", steps.ModelFiles},
		{"check nonconforming names", ignoreContext(steps.Nonconforming)},
		{"check file naming issues", ignoreContext(steps.NamingIssues)},
	}, steps.Complete)
}

// runSteps runs every step even if earlier ones fail. Only an interruption
// stops the run early.
func runSteps(ctx context.Context, steps []step, complete func()) error {
	var failed []string
	for _, step := range steps {
		if ctx.Err() != nil {
			return errors.ErrInterrupted
		}

		err := step.fn(ctx)
		if errors.Is(err, errors.ErrInterrupted) {
			return err
		}

		if err != nil {
			log.WithError(err).Errorf("Failed to %s", step.name)
			failed = append(failed, step.name)
		}
	}

	complete()
	if len(failed) != 0 {
		return errors.PartialFailure{Op: "run", Failed: failed}
	}
	return nil
}

func ignoreContext(fn func() error) func(context.Context) error {
	return func(context.Context) error {
		return fn()
	}
}
