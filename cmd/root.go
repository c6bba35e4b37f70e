package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sidkik/treeaudit/cmd/backup"
	configCmd "github.com/sidkik/treeaudit/cmd/config"
	"github.com/sidkik/treeaudit/cmd/inactive"
	"github.com/sidkik/treeaudit/cmd/names"
	"github.com/sidkik/treeaudit/cmd/run"
	"github.com/sidkik/treeaudit/cmd/sizes"
	"github.com/sidkik/treeaudit/cmd/syncmodels"
	"github.com/sidkik/treeaudit/cmd/util"
	"github.com/sidkik/treeaudit/cmd/version"
)

// Execute runs the main CLI process.
func Execute() {
	rootCmd := &cobra.Command{
		Use:   "treeaudit",
		Short: "Audit the naming and activity of a client file tree",
		Long: "treeaudit reports inactive, oversized and badly named folders in a\n" +
			"client file tree, keeps the working model files in sync with the\n" +
			"master copies, and backs the tree up to S3.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return util.SetupLogging()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&util.ConfigPath, "config", "c", "",
		"Path to the config file (default ~/.treeaudit.yaml)")
	flags.BoolVarP(&util.Verbose, "verbose", "v", false,
		"Log debug messages. Also enabled by TREEAUDIT_LOG_VERBOSE=true")
	flags.StringVar(&util.LogFormat, "log-format", util.LogFormat,
		"Log format. One of \"text\" or \"json\"")

	rootCmd.AddCommand(
		backup.New(),
		configCmd.New(),
		inactive.New(),
		names.New(),
		run.New(),
		sizes.New(),
		syncmodels.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
