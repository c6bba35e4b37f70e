package util

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sidkik/treeaudit/pkg/config"
	"github.com/sidkik/treeaudit/pkg/errors"
)

// TestHelper runs the treeaudit binary against a scratch tree.
type TestHelper struct {
	BaseDir    string
	ConfigPath string
	LockPath   string
	LogDir     string
}

// NewTestHelper creates an empty tree in a temporary directory, along with a
// config file pointing at it.
func NewTestHelper(t *testing.T) *TestHelper {
	root := t.TempDir()
	helper := &TestHelper{
		BaseDir:    filepath.Join(root, "tree"),
		ConfigPath: filepath.Join(root, "treeaudit.yaml"),
		LockPath:   filepath.Join(root, "treeaudit.lock"),
		LogDir:     filepath.Join(root, "logs"),
	}
	require.NoError(t, os.MkdirAll(helper.BaseDir, 0755))

	_, err := config.WriteFile(helper.ConfigPath, config.File{
		BaseDir:  helper.BaseDir,
		LockPath: helper.LockPath,
	})
	require.NoError(t, err)
	return helper
}

// Path returns the absolute path of `rel` within the tree.
func (helper *TestHelper) Path(rel string) string {
	return filepath.Join(helper.BaseDir, rel)
}

// WriteFile creates a file in the tree with the given modification time.
func (helper *TestHelper) WriteFile(t *testing.T, rel, contents string, modTime time.Time) {
	path := helper.Path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func (helper *TestHelper) command(ctx context.Context, args ...string) *exec.Cmd {
	args = append([]string{"--config", helper.ConfigPath}, args...)
	cmd := exec.CommandContext(ctx, "treeaudit", args...)
	cmd.Env = append(os.Environ(), "NO_COLOR=1", "BASE_DIR=")
	return cmd
}

// Run runs the given treeaudit command, and returns its stdout and stderr.
func (helper *TestHelper) Run(ctx context.Context, args ...string) (string, string, error) {
	cmd := helper.command(ctx, args...)
	stdout, stderr := bytes.NewBuffer(nil), bytes.NewBuffer(nil)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Start starts the given treeaudit command. The command is interrupted when
// `ctx` is cancelled. The returned channel receives the result of the
// command once it exits.
func (helper *TestHelper) Start(ctx context.Context, args ...string) (chan error, error) {
	cmd := helper.command(context.Background(), args...)
	stderr := bytes.NewBuffer(nil)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	errChan := make(chan error, 1)
	go func() {
		waitErr := make(chan error)
		go func() {
			waitErr <- cmd.Wait()
			close(waitErr)
		}()

		defer close(errChan)
		select {
		case <-ctx.Done():
			if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
				errChan <- errors.WithContext(err, "interrupt")
				return
			}
			errChan <- <-waitErr
		case err := <-waitErr:
			errChan <- errors.New("exited early (%v): stderr: %s", err, stderr)
		}
	}()
	return errChan, nil
}

// WaitFor polls `check` until it succeeds or `timeout` elapses.
func WaitFor(timeout time.Duration, check func() error) error {
	deadline := time.Now().Add(timeout)
	for {
		err := check()
		if err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return errors.WithContext(err, "timed out")
		}
		time.Sleep(250 * time.Millisecond)
	}
}
