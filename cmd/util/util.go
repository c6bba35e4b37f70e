package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/treeaudit/pkg/config"
	"github.com/sidkik/treeaudit/pkg/errors"
	"github.com/sidkik/treeaudit/pkg/runlog"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "TREEAUDIT_LOG_VERBOSE"

// Flags shared by every command. They're bound to the root command's
// persistent flags.
var (
	ConfigPath string
	Verbose    bool
	LogFormat  = "text"
)

// Mocked out for unit testing.
var exit = os.Exit

// SetupLogging configures the global logger according to the shared flags.
func SetupLogging() error {
	if Verbose || os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	switch LogFormat {
	case "text":
		log.SetFormatter(&log.TextFormatter{
			DisableTimestamp: true,
			ForceColors:      ColorEnabled(os.Stderr),
			DisableColors:    !ColorEnabled(os.Stderr),
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.NewFriendlyError("Unknown log format %q. "+
			"Supported formats are \"text\" and \"json\".", LogFormat)
	}
	return nil
}

// LoadConfig loads the configuration from the path given by the `--config`
// flag.
func LoadConfig() (config.Config, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return config.Config{}, errors.WithContext(err, "load config")
	}
	return cfg, nil
}

// SignalContext returns a context that's cancelled when the user interrupts
// the process.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type friendlyError interface {
	FriendlyMessage() string
}

// HandleFatalError prints the error and exits. Friendly errors are printed
// as-is, everything else is logged with its context.
func HandleFatalError(err error) {
	if errors.Is(err, errors.ErrInterrupted) {
		fmt.Fprintln(os.Stderr, "Operation interrupted by user.")
		exit(130)
		return
	}

	if friendly, ok := errors.RootCause(err).(friendlyError); ok {
		log.WithError(err).Debug("Fatal error")
		fmt.Fprintln(os.Stderr, friendly.FriendlyMessage())
		exit(1)
		return
	}

	log.WithError(err).Error("Fatal error")
	exit(1)
}

// HandlePanic logs the stack trace of a panic before exiting. It should be
// deferred at the start of every goroutine.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Unexpected panic: %v", r)
		exit(1)
	}
}

// RecordLog additionally writes log entries to a dated file in `dir`. The
// returned function stops recording. An empty `dir` disables recording.
func RecordLog(dir, prefix string) (func(), error) {
	if dir == "" {
		return func() {}, nil
	}

	hook, err := runlog.NewHook(dir, prefix, clockwork.NewRealClock())
	if err != nil {
		return nil, errors.WithContext(err, "create log file")
	}

	log.AddHook(hook)
	log.WithField("path", hook.Path()).Debug("Recording log")
	return func() {
		if err := hook.Close(); err != nil {
			log.WithError(err).Debug("Failed to close log file")
		}
	}, nil
}
