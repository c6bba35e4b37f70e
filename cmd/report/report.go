// Package report runs the individual audit steps and prints their results.
// It's shared by `treeaudit run` and the commands that run a single step.
package report

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/cmd/util"
	"github.com/sidkik/treeaudit/pkg/compliance"
	"github.com/sidkik/treeaudit/pkg/config"
	"github.com/sidkik/treeaudit/pkg/errors"
	"github.com/sidkik/treeaudit/pkg/mirror"
)

// largestFoldersCount is the number of folders shown in the size report.
const largestFoldersCount = 10

// Steps runs the audit steps against the tree described by its config.
type Steps struct {
	cfg     config.Config
	scanner *compliance.Scanner
	mirror  *mirror.Mirror
	printer *util.Printer
}

// Load creates Steps for the configuration selected by the command line
// flags, operating on the real filesystem and printing to stdout.
func Load() (Steps, config.Config, error) {
	cfg, err := util.LoadConfig()
	if err != nil {
		return Steps{}, config.Config{}, err
	}

	steps := New(afero.NewOsFs(), cfg, clockwork.NewRealClock(), util.NewStdoutPrinter())
	return steps, cfg, nil
}

// New creates Steps that read the tree through `fs`.
func New(fs afero.Fs, cfg config.Config, clock clockwork.Clock, printer *util.Printer) Steps {
	return Steps{
		cfg: cfg,
		scanner: compliance.New(fs, compliance.Options{
			ExcludedNames: cfg.ExcludedNames,
			SystemFiles:   cfg.SystemFiles,
		}, clock),
		mirror:  mirror.New(fs),
		printer: printer,
	}
}

// InactiveFolders reports the inquiry folders that haven't been modified
// recently.
func (s Steps) InactiveFolders() error {
	s.printer.Section("Checking Inactive Folders")
	inactive, err := s.scanner.FindInactiveFolders(s.cfg.ConsultasDir,
		s.cfg.ExcludedConsultasFolders, s.cfg.InactiveDaysThreshold)
	if err != nil {
		return errors.WithContext(err, "find inactive folders")
	}

	s.printer.List("Inactive folders found:", inactive, "No inactive folders found")
	return nil
}

// FolderSizes reports the largest client folders, and the folders that are
// above the size threshold.
func (s Steps) FolderSizes() error {
	s.printer.Section("Analyzing Folder Sizes")
	sizes, err := s.scanner.FolderSizes(s.cfg.BaseDir, s.cfg.ExcludedNames)
	if err != nil {
		return errors.WithContext(err, "get folder sizes")
	}

	s.printer.List("Ten largest folders:",
		formatSizes(compliance.LargestFolders(sizes, largestFoldersCount)), "")

	overThreshold := compliance.OverThreshold(sizes, s.cfg.SizeThresholdMB)
	s.printer.List(fmt.Sprintf("Folders larger than %s MB:", humanize.Comma(s.cfg.SizeThresholdMB)),
		formatSizes(overThreshold), "")
	return nil
}

// ModelFiles mirrors the template source directory onto the working
// templates directory.
func (s Steps) ModelFiles(ctx context.Context) error {
	s.printer.Section("Replacing Model Files")
	result, err := s.mirror.SyncWithResult(ctx, s.cfg.ModelSourceDir, s.cfg.ModelDestDir)
	if err != nil {
		s.printer.Failure("✗ Failed to replace model files")
		return errors.WithContext(err, "replace model files")
	}

	s.printer.Success("✓ Model files successfully replaced (%d copied, %d replaced)",
		len(result.Copied), len(result.Replaced))
	return nil
}

// Nonconforming reports the top level entries that lack a numbered suffix.
func (s Steps) Nonconforming() error {
	s.printer.Section("Checking Nonconforming Names")
	names, err := s.scanner.ListTopLevelNonconforming(s.cfg.BaseDir)
	if err != nil {
		return errors.WithContext(err, "check nonconforming names")
	}

	s.printer.List("Nonconforming folders and files found:", names, "")
	return nil
}

// NamingIssues reports every entry in the tree with a naming issue, grouped
// by category.
func (s Steps) NamingIssues() error {
	s.printer.Section("Checking File Naming Issues")
	issues, err := s.scanner.ScanNamingIssues(s.cfg.BaseDir)
	if err != nil {
		return errors.WithContext(err, "check file naming issues")
	}

	if issues.Empty() {
		s.printer.Line("No naming issues found.")
		return nil
	}

	s.printer.Line("\nFound the following naming issues:")
	for _, category := range compliance.Categories {
		s.printer.List(category.Description()+":", issues[category], "")
	}
	return nil
}

// Complete marks the end of the report.
func (s Steps) Complete() {
	s.printer.Section("Operation Complete")
}

func formatSizes(sizes []compliance.FolderSize) (lines []string) {
	for _, size := range sizes {
		lines = append(lines, fmt.Sprintf("%s: %s MB", size.Name, humanize.Comma(size.MB)))
	}
	return lines
}
