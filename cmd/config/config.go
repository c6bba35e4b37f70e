package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/treeaudit/cmd/util"
	"github.com/sidkik/treeaudit/pkg/config"
	"github.com/sidkik/treeaudit/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout              io.Writer = os.Stdout
	stdin               io.Reader = os.Stdin
	guessDefaults                 = guessDefaultsImpl
	readConfigFile                = config.ReadFile
	writeConfigFile               = config.WriteFile
	loadConfig                    = config.Load
	stat                          = os.Stat
	getWorkingDirectory           = os.Getwd
	getCurrentUser                = user.Current
	expandHome                    = homedir.Expand
)

// settings are the values that `treeaudit config` prompts for.
type settings struct {
	BaseDir string
	Bucket  string
	Region  string
}

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts settings
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the treeaudit configuration file",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.BaseDir, "base-dir", "",
		"Set the root of the audited tree in the config. "+
			"Optional: If not set, `treeaudit config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Bucket, "bucket", "",
		"Set the backup bucket in the config. "+
			"Optional: If not set, `treeaudit config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Region, "region", "",
		"Set the backup bucket's region in the config. "+
			"Optional: If not set, `treeaudit config` will interactively prompt.")

	// Setup the commands for querying the effective configuration.
	type getterSpec struct {
		use, short string
		fn         func(config.Config) string
	}

	getters := []getterSpec{
		{
			use:   "get-base-dir",
			short: "Get the root of the audited tree",
			fn:    func(cfg config.Config) string { return cfg.BaseDir },
		},
		{
			use:   "get-models-dir",
			short: "Get the directory that the master models are copied to",
			fn:    func(cfg config.Config) string { return cfg.ModelDestDir },
		},
		{
			use:   "get-bucket",
			short: "Get the bucket that backups are uploaded to",
			fn:    func(cfg config.Config) string { return cfg.Backup.Bucket },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := loadConfig(util.ConfigPath)
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
					return
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

// SetupConfig prompts for any settings not given in `cliOpts` and writes them
// to the config file. Other fields already in the file are kept.
func SetupConfig(cliOpts settings) error {
	path := util.ConfigPath
	if path == "" {
		path = config.DefaultConfigPath
	}

	currFile, err := readConfigFile(path)
	if err != nil {
		currFile = config.File{}
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg, err := generateConfig(cliOpts, fromFile(currFile))
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	path, err = writeConfigFile(path, cfg.applyTo(currFile))
	if err != nil {
		return errors.WithContext(err, "write config")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func fromFile(file config.File) settings {
	s := settings{BaseDir: file.BaseDir}
	if file.Backup != nil {
		s.Bucket = file.Backup.Bucket
		s.Region = file.Backup.Region
	}
	return s
}

func (s settings) applyTo(file config.File) config.File {
	file.BaseDir = s.BaseDir
	if file.Backup == nil {
		file.Backup = &config.BackupFile{}
	} else {
		backup := *file.Backup
		file.Backup = &backup
	}
	file.Backup.Bucket = s.Bucket
	file.Backup.Region = s.Region
	return file
}

// bucketValidationFn checks the S3 bucket naming rules.
func bucketValidationFn(bucket string) (string, bool) {
	// 1) Between 3 and 63 characters.
	// 2) Lowercase letters, numbers, dots and hyphens.
	// 3) Must start and end with a letter or number.
	if len(bucket) < 3 || len(bucket) > 63 {
		return "The bucket name must be between 3 and 63 characters long. " +
			"Please pick another bucket.", false
	}

	re := regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)
	if re.MatchString(bucket) && !strings.Contains(bucket, "..") {
		return "", true
	}

	return "This bucket name contains invalid characters. " +
		"Please pick another bucket that only " +
		"uses the following characters:\n" +
		"1) lowercase letters (a-z) \n" +
		"2) numbers (0-9) \n" +
		"3) . and - \n" +
		"Please ensure that your chosen bucket " +
		"starts and ends with a letter or number.", false
}

func baseDirValidationFn(path string) (string, bool) {
	expanded, err := expandHome(path)
	if err != nil {
		return fmt.Sprintf("Failed to expand %q: %s", path, err), false
	}

	fi, err := stat(expanded)
	if err != nil || !fi.IsDir() {
		return fmt.Sprintf("%q is not a directory. Please pick another directory.", path), false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is.
// It makes best guesses at reasonable defaults, and allows users to explicitly
// override them if desired.
func generateConfig(cliOpts, currConfig settings) (settings, error) {
	defaults := guessDefaults()

	cfg := cliOpts
	var prompts []prompt
	if cliOpts.BaseDir == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the path to the root of the audited tree.\n" +
				"It should contain the client folders and the `AAA --- NAO CLIENTE`\n" +
				"and `AAA --- CONSULTAS` folders.",
			prompt:        "Base directory",
			defaultAnswer: defaults.BaseDir,
			currAnswer:    currConfig.BaseDir,
			field:         &cfg.BaseDir,
			validationFn:  baseDirValidationFn,
		})
	}

	if cliOpts.Bucket == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the S3 bucket that backups are uploaded to.\n" +
				"It's created on the first backup if it doesn't exist yet.",
			prompt:        "Backup bucket",
			defaultAnswer: defaults.Bucket,
			currAnswer:    currConfig.Bucket,
			field:         &cfg.Bucket,
			validationFn:  bucketValidationFn,
		})
	}

	if cliOpts.Region == "" {
		prompts = append(prompts, prompt{
			helpString:    "Enter the AWS region of the backup bucket.",
			prompt:        "Backup region",
			defaultAnswer: defaults.Region,
			currAnswer:    currConfig.Region,
			field:         &cfg.Region,
		})
	}

	for _, prompt := range prompts {
		var resp string
		var err error
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return settings{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	return cfg, nil
}

// guessDefaults tries to guess reasonable defaults for the settings.
func guessDefaultsImpl() settings {
	cfg := settings{
		Bucket: config.Default().Backup.Bucket,
		Region: config.Default().Backup.Region,
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Region = region
	}

	if baseDir, err := guessBaseDir(); err == nil {
		cfg.BaseDir = baseDir
	} else {
		log.WithError(err).Info("Failed to guess base directory")
	}

	if user, err := getCurrentUser(); err == nil {
		if bucket := sanitizeBucket(user.Username + "-backup"); bucket != "" {
			cfg.Bucket = bucket
		}
	} else {
		log.WithError(err).Info("Failed to guess bucket")
	}

	return cfg
}

func sanitizeBucket(original string) (sanitized string) {
	sanitized = strings.ToLower(original)
	noInvalidChar := regexp.MustCompile(`[^-a-z0-9]`)
	sanitized = noInvalidChar.ReplaceAllString(sanitized, "")
	noLeadingOrTrailingHyphen := regexp.MustCompile(`^-*(.*?)-*$`)
	sanitized = noLeadingOrTrailingHyphen.ReplaceAllString(sanitized, "$1")
	if len(sanitized) > 63 {
		sanitized = strings.TrimRight(sanitized[:63], "-")
	}

	// As a sanity check, make sure the sanitized name passes the bucket
	// validation. This should never fail unless there's a bug in the
	// sanitization logic above.
	if _, ok := bucketValidationFn(sanitized); !ok {
		return ""
	}
	return sanitized
}

// guessBaseDir returns the current directory if it looks like the root of
// the audited tree.
func guessBaseDir() (string, error) {
	currDir, err := getWorkingDirectory()
	if err != nil {
		return "", errors.WithContext(err, "get current directory")
	}

	path := filepath.Join(currDir, "AAA --- NAO CLIENTE")
	if _, err := stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.WithContext(err, "stat")
	}
	return currDir, nil
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Separates the prompts for each field.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// An empty answer picks the recommended option.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					continue
				}
			}

			if choice == nOptions {
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}
