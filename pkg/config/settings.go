// Package config builds the immutable run configuration from defaults, an
// optional YAML file, a `.env` file and the environment, in increasing order
// of precedence.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
)

const (
	// DefaultConfigPath is where the config file is looked for when no path
	// is given.
	DefaultConfigPath = "~/.treeaudit.yaml"

	// DefaultLockPath is the lock file that prevents concurrent runs. It lives
	// outside the audited tree so that it never shows up in reports.
	DefaultLockPath = "~/.treeaudit.lock"

	// InitialConfigVersion is the first version of the config file. Files
	// that do not specify a version default to this version.
	InitialConfigVersion = "v1alpha1"

	// SupportedConfigVersion is the config file version supported by this
	// binary.
	SupportedConfigVersion = "v1alpha1"

	nonClientDir = "AAA --- NAO CLIENTE"
	consultasDir = "AAA --- CONSULTAS"
)

// Mocked out for unit testing.
var (
	fs            = afero.NewOsFs()
	homedirExpand = homedir.Expand
	loadDotenv    = func() error { return godotenv.Load() }
)

// Config is the configuration for a run. It's built once by Load and passed
// by value afterwards.
type Config struct {
	BaseDir string

	// ExcludedNames are top-level entries that aren't client folders. They're
	// skipped by every check.
	ExcludedNames []string

	// SystemFiles are OS and tooling files that are ignored at the top level.
	SystemFiles []string

	// ExcludedConsultasFolders are folders inside ConsultasDir that are never
	// reported as inactive.
	ExcludedConsultasFolders []string

	InactiveDaysThreshold int
	SizeThresholdMB       int64

	ConsultasDir   string
	ModelSourceDir string
	ModelDestDir   string

	LockPath string

	Backup BackupConfig
}

// BackupConfig configures the S3 backup.
type BackupConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// MaxFiles caps the number of files uploaded per run. Zero means no cap.
	MaxFiles int

	// MaxFileMB is the size above which files are skipped.
	MaxFileMB int64
}

// File is the schema of the YAML config file. Unset fields keep their
// defaults. Credentials are only read from the environment.
type File struct {
	Version                  string      `json:"version,omitempty"`
	BaseDir                  string      `json:"baseDir,omitempty"`
	ExcludedNames            []string    `json:"excludedNames,omitempty"`
	SystemFiles              []string    `json:"systemFiles,omitempty"`
	ExcludedConsultasFolders []string    `json:"excludedConsultasFolders,omitempty"`
	InactiveDaysThreshold    int         `json:"inactiveDaysThreshold,omitempty"`
	SizeThresholdMB          int64       `json:"sizeThresholdMB,omitempty"`
	ConsultasDir             string      `json:"consultasDir,omitempty"`
	ModelSourceDir           string      `json:"modelSourceDir,omitempty"`
	ModelDestDir             string      `json:"modelDestDir,omitempty"`
	LockPath                 string      `json:"lockPath,omitempty"`
	Backup                   *BackupFile `json:"backup,omitempty"`
}

// BackupFile is the `backup` section of the config file.
type BackupFile struct {
	Endpoint  string `json:"endpoint,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	UseSSL    *bool  `json:"useSSL,omitempty"`
	MaxFiles  *int   `json:"maxFiles,omitempty"`
	MaxFileMB int64  `json:"maxFileMB,omitempty"`
}

func (f File) getVersion() string {
	return f.Version
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		BaseDir: ".",
		ExcludedNames: []string{
			nonClientDir,
			consultasDir,
			"AAA --- ARQUIVO MORTO",
			"onedrive",
		},
		SystemFiles: []string{
			"checker.py",
			".DS_Store",
			"checkerWindows.py",
			".xdg-volume-info",
			".Trash-1000",
			".checker.py.swp",
		},
		ExcludedConsultasFolders: []string{"#ENCERRADOS"},
		InactiveDaysThreshold:    30,
		SizeThresholdMB:          1000,
		LockPath:                 DefaultLockPath,
		Backup: BackupConfig{
			Endpoint:  "s3.amazonaws.com",
			Region:    "us-west-2",
			Bucket:    "lzt-backup",
			UseSSL:    true,
			MaxFiles:  100,
			MaxFileMB: 100,
		},
	}
}

// Load builds the configuration. If `path` is empty, DefaultConfigPath is
// used and may be missing. An explicitly given path must exist.
func Load(path string) (Config, error) {
	if err := loadDotenv(); err != nil {
		log.WithError(err).Debug("No .env file loaded")
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	path, err := homedirExpand(path)
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}

	cfg := Default()
	file := File{Version: InitialConfigVersion}
	err = parseConfig(path, &file, SupportedConfigVersion)
	switch err.(type) {
	case nil:
		file.applyTo(&cfg)
	case errors.NotFoundError:
		if explicit {
			return Config{}, errors.NewFriendlyError(
				"The config file doesn't exist at %q.", path)
		}
		log.WithField("path", path).Debug("No config file, using defaults")
	default:
		return Config{}, errors.WithContext(err, "parse")
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, errors.WithContext(err, "read environment")
	}

	if err := cfg.resolvePaths(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns an error for every required directory that doesn't exist.
func (cfg Config) Validate() []error {
	required := []string{cfg.BaseDir, cfg.ModelSourceDir, cfg.ModelDestDir, cfg.ConsultasDir}

	var errs []error
	for _, path := range required {
		info, err := fs.Stat(path)
		if err != nil || !info.IsDir() {
			errs = append(errs, errors.NotFoundError{Path: path})
		}
	}
	return errs
}

func (f File) applyTo(cfg *Config) {
	setString(&cfg.BaseDir, f.BaseDir)
	setString(&cfg.ConsultasDir, f.ConsultasDir)
	setString(&cfg.ModelSourceDir, f.ModelSourceDir)
	setString(&cfg.ModelDestDir, f.ModelDestDir)
	setString(&cfg.LockPath, f.LockPath)

	if f.ExcludedNames != nil {
		cfg.ExcludedNames = f.ExcludedNames
	}
	if f.SystemFiles != nil {
		cfg.SystemFiles = f.SystemFiles
	}
	if f.ExcludedConsultasFolders != nil {
		cfg.ExcludedConsultasFolders = f.ExcludedConsultasFolders
	}
	if f.InactiveDaysThreshold != 0 {
		cfg.InactiveDaysThreshold = f.InactiveDaysThreshold
	}
	if f.SizeThresholdMB != 0 {
		cfg.SizeThresholdMB = f.SizeThresholdMB
	}

	if f.Backup == nil {
		return
	}
	setString(&cfg.Backup.Endpoint, f.Backup.Endpoint)
	setString(&cfg.Backup.Region, f.Backup.Region)
	setString(&cfg.Backup.Bucket, f.Backup.Bucket)
	if f.Backup.UseSSL != nil {
		cfg.Backup.UseSSL = *f.Backup.UseSSL
	}
	if f.Backup.MaxFiles != nil {
		cfg.Backup.MaxFiles = *f.Backup.MaxFiles
	}
	if f.Backup.MaxFileMB != 0 {
		cfg.Backup.MaxFileMB = f.Backup.MaxFileMB
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.BaseDir, getenv("BASE_DIR"))
	setString(&cfg.LockPath, getenv("TREEAUDIT_LOCK_PATH"))
	setString(&cfg.Backup.Endpoint, getenv("S3_ENDPOINT"))
	setString(&cfg.Backup.Region, getenv("AWS_REGION"))
	setString(&cfg.Backup.Bucket, getenv("BACKUP_BUCKET"))
	setString(&cfg.Backup.AccessKey, getenv("AWS_ACCESS_KEY_ID"))
	setString(&cfg.Backup.SecretKey, getenv("AWS_SECRET_ACCESS_KEY"))

	if folders := getenv("EXCLUDED_CONSULTAS_FOLDERS"); folders != "" {
		cfg.ExcludedConsultasFolders = splitList(folders)
	}

	if days := getenv("INACTIVE_DAYS_THRESHOLD"); days != "" {
		parsed, err := strconv.Atoi(days)
		if err != nil {
			return errors.WithContext(err, "parse INACTIVE_DAYS_THRESHOLD")
		}
		cfg.InactiveDaysThreshold = parsed
	}

	if mb := getenv("SIZE_THRESHOLD_MB"); mb != "" {
		parsed, err := strconv.ParseInt(mb, 10, 64)
		if err != nil {
			return errors.WithContext(err, "parse SIZE_THRESHOLD_MB")
		}
		cfg.SizeThresholdMB = parsed
	}

	if useSSL := getenv("S3_USE_SSL"); useSSL != "" {
		parsed, err := strconv.ParseBool(useSSL)
		if err != nil {
			return errors.WithContext(err, "parse S3_USE_SSL")
		}
		cfg.Backup.UseSSL = parsed
	}
	return nil
}

// resolvePaths expands home directories and makes the derived directories
// relative to BaseDir.
func (cfg *Config) resolvePaths() error {
	var err error
	if cfg.BaseDir, err = homedirExpand(cfg.BaseDir); err != nil {
		return errors.WithContext(err, "expand base dir")
	}
	if cfg.LockPath, err = homedirExpand(cfg.LockPath); err != nil {
		return errors.WithContext(err, "expand lock path")
	}

	defaults := map[*string]string{
		&cfg.ConsultasDir:   consultasDir,
		&cfg.ModelSourceDir: filepath.Join(nonClientDir, "ZMODELOS"),
		&cfg.ModelDestDir:   filepath.Join(nonClientDir, "MODELOS"),
	}
	for field, def := range defaults {
		if *field == "" {
			*field = def
		}

		if *field, err = homedirExpand(*field); err != nil {
			return errors.WithContext(err, "expand path")
		}

		if !filepath.IsAbs(*field) {
			*field = filepath.Join(cfg.BaseDir, *field)
		}
	}
	return nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(field *string, value string) {
	if value != "" {
		*field = value
	}
}

func splitList(s string) (list []string) {
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
