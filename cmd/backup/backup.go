package backup

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sidkik/treeaudit/cmd/util"
	"github.com/sidkik/treeaudit/pkg/backup"
	"github.com/sidkik/treeaudit/pkg/config"
	"github.com/sidkik/treeaudit/pkg/errors"
)

// Mocked out for unit testing.
var (
	fs    = afero.NewOsFs()
	clock = clockwork.NewRealClock()
)

const bytesPerMB = 1024 * 1024

type options struct {
	accessKey string
	secretKey string
	region    string
	bucket    string
	endpoint  string
	directory string
	maxFiles  int
	logDir    string
	dryRun    bool
}

// New creates a new `backup` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload a copy of the tree to S3",
		Long: "Upload the files beneath a directory to an S3 bucket, under a prefix\n" +
			"named after the directory and the current time. Hidden files and\n" +
			"files larger than the size limit are skipped.",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := run(cmd.Flags(), opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	bindFlags(cmd.Flags(), &opts)
	return cmd
}

func bindFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.accessKey, "aws-key", "", "AWS access key ID (default $AWS_ACCESS_KEY_ID)")
	flags.StringVar(&opts.secretKey, "aws-secret", "", "AWS secret access key (default $AWS_SECRET_ACCESS_KEY)")
	flags.StringVar(&opts.region, "region", "", "AWS region (default $AWS_REGION)")
	flags.StringVar(&opts.bucket, "bucket", "", "S3 bucket name (default $BACKUP_BUCKET)")
	flags.StringVar(&opts.endpoint, "endpoint", "", "S3 endpoint (default $S3_ENDPOINT)")
	flags.StringVar(&opts.directory, "directory", "", "Directory to back up (default $BASE_DIR)")
	flags.IntVar(&opts.maxFiles, "max-files", 0, "Maximum number of files to upload. 0 means no limit")
	flags.StringVar(&opts.logDir, "log-dir", "logs", "Directory for the backup log files")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "List the files that would be uploaded without uploading them")
}

func run(flags *pflag.FlagSet, opts options) error {
	stopRecording, err := util.RecordLog(opts.logDir, "backup")
	if err != nil {
		return err
	}
	defer stopRecording()

	cfg, err := util.LoadConfig()
	if err != nil {
		return err
	}
	applyFlags(flags, opts, &cfg)

	directory := cfg.BaseDir
	if opts.directory != "" {
		directory = opts.directory
	}

	pp := util.NewProgressPrinter(os.Stdout, "Collecting files to back up")
	go pp.Run()
	objects, err := backup.Collect(fs, directory, backup.CollectOptions{
		MaxFiles:     cfg.Backup.MaxFiles,
		MaxFileBytes: cfg.Backup.MaxFileMB * bytesPerMB,
		Now:          clock.Now(),
	})
	pp.StopWithPrint(util.ClearProgress)
	if err != nil {
		return errors.WithContext(err, "collect files")
	}

	if opts.dryRun {
		printPlan(objects)
		return nil
	}

	uploader, err := backup.NewS3Uploader(fs, s3Config(cfg.Backup))
	if err != nil {
		return credentialsError(err)
	}

	ctx, cancel := util.SignalContext()
	defer cancel()

	log.WithFields(log.Fields{
		"directory": directory,
		"bucket":    cfg.Backup.Bucket,
		"files":     len(objects),
	}).Infof("Starting backup of %s to S3 bucket %s", directory, cfg.Backup.Bucket)

	result, err := backup.Run(ctx, uploader, objects)
	if err != nil {
		log.WithField("uploaded", result.Uploaded).Error("Backup failed")
		return errors.WithContext(err, "backup")
	}

	log.WithField("uploaded", result.Uploaded).Infof(
		"Successfully backed up %d files from %s to S3", result.Uploaded, directory)
	return nil
}

// applyFlags overrides the configuration with the flags that were explicitly
// set.
func applyFlags(flags *pflag.FlagSet, opts options, cfg *config.Config) {
	overrides := map[string]func(){
		"aws-key":    func() { cfg.Backup.AccessKey = opts.accessKey },
		"aws-secret": func() { cfg.Backup.SecretKey = opts.secretKey },
		"region":     func() { cfg.Backup.Region = opts.region },
		"bucket":     func() { cfg.Backup.Bucket = opts.bucket },
		"endpoint":   func() { cfg.Backup.Endpoint = opts.endpoint },
		"max-files":  func() { cfg.Backup.MaxFiles = opts.maxFiles },
	}
	for name, override := range overrides {
		if flags.Changed(name) {
			override()
		}
	}
}

func s3Config(cfg config.BackupConfig) backup.S3Config {
	return backup.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	}
}

func credentialsError(err error) error {
	var missing errors.MissingFieldError
	if !errors.As(err, &missing) {
		return errors.WithContext(err, "create uploader")
	}

	switch missing.Field {
	case "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY":
		return errors.NewFriendlyError("AWS credentials not set. " +
			"Please set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables " +
			"or use --aws-key and --aws-secret arguments.\n" +
			"Make sure to use ACTUAL AWS credentials, not the placeholder values.")
	default:
		return errors.NewFriendlyError("The backup %s is not configured.", missing.Field)
	}
}

func printPlan(objects []backup.Object) {
	var total int64
	for _, obj := range objects {
		fmt.Fprintf(os.Stdout, "%s -> %s\n", obj.LocalPath, obj.Key)
		total += obj.SizeBytes
	}
	fmt.Fprintf(os.Stdout, "\n%d files, %s\n", len(objects), humanize.IBytes(uint64(total)))
}
