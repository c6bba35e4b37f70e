package sync

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/treeaudit/ci/util"
	"github.com/sidkik/treeaudit/pkg/errors"
)

const (
	sourceDir = "AAA --- NAO CLIENTE/ZMODELOS"
	destDir   = "AAA --- NAO CLIENTE/MODELOS"
)

// Test checks that `treeaudit sync --watch` keeps the working models in sync
// as the master models change.
func Test(t *testing.T, helper *util.TestHelper) {
	now := time.Now()
	helper.WriteFile(t, sourceDir+"/CONTRATO.DOCX", "v1", now)

	ctx, cancel := context.WithCancel(context.Background())
	errChan, err := helper.Start(ctx, "sync", "--watch")
	require.NoError(t, err)

	t.Run("InitialSync", func(t *testing.T) {
		assert.NoError(t, util.WaitFor(30*time.Second, shouldContain(helper, "CONTRATO.DOCX", "v1")))
	})

	t.Run("ChangeContents", func(t *testing.T) {
		helper.WriteFile(t, sourceDir+"/CONTRATO.DOCX", "v2", now.Add(time.Minute))
		assert.NoError(t, util.WaitFor(30*time.Second, shouldContain(helper, "CONTRATO.DOCX", "v2")))
	})

	t.Run("NewDirectory", func(t *testing.T) {
		helper.WriteFile(t, sourceDir+"/PETICOES/INICIAL.DOCX", "new", now)
		assert.NoError(t, util.WaitFor(30*time.Second,
			shouldContain(helper, "PETICOES/INICIAL.DOCX", "new")))

		// Changes within the new directory are noticed too.
		helper.WriteFile(t, sourceDir+"/PETICOES/INICIAL.DOCX", "changed", now)
		assert.NoError(t, util.WaitFor(30*time.Second,
			shouldContain(helper, "PETICOES/INICIAL.DOCX", "changed")))
	})

	cancel()
	assert.NoError(t, <-errChan, "sync should exit cleanly when interrupted")
}

func shouldContain(helper *util.TestHelper, rel, exp string) func() error {
	return func() error {
		contents, err := os.ReadFile(helper.Path(destDir + "/" + rel))
		if err != nil {
			return err
		}

		if string(contents) != exp {
			return errors.New("unexpected contents %q", contents)
		}
		return nil
	}
}
