package inactive

import (
	"github.com/spf13/cobra"

	"github.com/sidkik/treeaudit/cmd/report"
	"github.com/sidkik/treeaudit/cmd/util"
)

// New creates a new `inactive` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "inactive",
		Short: "List inquiry folders without recent modifications",
		Long: "List the folders in the inquiries directory in which no file was\n" +
			"modified within the inactivity threshold (INACTIVE_DAYS_THRESHOLD).",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run() error {
	steps, _, err := report.Load()
	if err != nil {
		return err
	}
	return steps.InactiveFolders()
}
