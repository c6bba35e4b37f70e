package sizes

import (
	"github.com/spf13/cobra"

	"github.com/sidkik/treeaudit/cmd/report"
	"github.com/sidkik/treeaudit/cmd/util"
)

// New creates a new `sizes` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "sizes",
		Short: "Show the largest client folders",
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
	return steps.FolderSizes()
}
