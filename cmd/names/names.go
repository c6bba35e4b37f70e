package names

import (
	"github.com/spf13/cobra"

	"github.com/sidkik/treeaudit/cmd/report"
	"github.com/sidkik/treeaudit/cmd/util"
)

// New creates a new `names` command.
func New() *cobra.Command {
	var topLevelOnly bool
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Report files and folders that break the naming conventions",
		Long: "Report the top level entries without a numbered suffix, such as\n" +
			"\"ACME (123)\", and every entry in the tree with a naming issue.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(topLevelOnly); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&topLevelOnly, "top-level", false,
		"Only check the top level entries for a numbered suffix")
	return cmd
}

func run(topLevelOnly bool) error {
	steps, _, err := report.Load()
	if err != nil {
		return err
	}

	if err := steps.Nonconforming(); err != nil {
		return err
	}

	if topLevelOnly {
		return nil
	}
	return steps.NamingIssues()
}
