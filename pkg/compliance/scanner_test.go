package compliance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/treeaudit/pkg/errors"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

var testOptions = Options{
	ExcludedNames: []string{"AAA --- NAO CLIENTE", "AAA --- CONSULTAS"},
	SystemFiles:   []string{".DS_Store", "checker.py"},
}

// deniedFs fails to open the paths in `denied`, as if they had restrictive
// permissions.
type deniedFs struct {
	afero.Fs
	denied map[string]bool
}

func (fs deniedFs) Open(name string) (afero.File, error) {
	if fs.denied[filepath.Clean(name)] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return fs.Fs.Open(name)
}

type mockFile struct {
	path     string
	contents string
	modTime  time.Time
}

func writeToFs(t *testing.T, fs afero.Fs, files ...mockFile) {
	for _, f := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(f.path), 0755))
		require.NoError(t, afero.WriteFile(fs, f.path, []byte(f.contents), 0644))
		if !f.modTime.IsZero() {
			require.NoError(t, fs.Chtimes(f.path, f.modTime, f.modTime))
		}
	}
}

func newTestScanner(fs afero.Fs) *Scanner {
	return New(fs, testOptions, clockwork.NewFakeClockAt(now))
}

func TestListTopLevelNonconforming(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeToFs(t, fs,
		mockFile{path: "/base/ACME LTDA (12)/CONTRATO.PDF"},
		mockFile{path: "/base/JOAO SILVA/PROCURACAO.PDF"},
		mockFile{path: "/base/MARIA (SEM NUMERO)/A.PDF"},
		mockFile{path: "/base/AAA --- NAO CLIENTE/ZMODELOS/A.DOCX"},
		mockFile{path: "/base/.DS_Store"},
		mockFile{path: "/base/checker.py"},
		mockFile{path: "/base/NOTAS.TXT"},
		mockFile{path: "/base/PLANILHA (3)"},
	)

	nonconforming, err := newTestScanner(fs).ListTopLevelNonconforming("/base")
	require.NoError(t, err)
	assert.Equal(t, []string{"JOAO SILVA", "MARIA (SEM NUMERO)", "NOTAS.TXT"}, nonconforming)

	_, err = newTestScanner(fs).ListTopLevelNonconforming("/missing")
	assert.Equal(t, errors.NotFoundError{Path: "/missing"}, errors.RootCause(err))
}

func TestScanNamingIssues(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeToFs(t, fs,
		mockFile{path: "/base/ACME (1)/2025.01.15 PETICAO.PDF"},
		mockFile{path: "/base/ACME (1)/CNIS JOAO.PDF"},
		mockFile{path: "/base/ACME (1)/docs/LEIAME"},
		mockFile{path: "/base/ACME (1)/X2024-ABC.PDF"},
		mockFile{path: "/base/BETA (2)/2025.01-RECURSO.PDF"},
		mockFile{path: "/base/BETA (2)/EXTRATO 2023.PDF"},
		mockFile{path: "/base/AAA --- NAO CLIENTE/modelo sem extensao"},
		mockFile{path: "/base/AAA --- CONSULTAS/x/y.pdf"},
	)

	scanner := newTestScanner(fs)
	report, err := scanner.ScanNamingIssues("/base")
	require.NoError(t, err)

	assert.Equal(t, Report{
		Lowercase:     {"ACME (1)/docs"},
		NoExtension:   {"ACME (1)/docs/LEIAME"},
		YearMonthDot:  {"ACME (1)/2025.01.15 PETICAO.PDF"},
		YearDash:      {"ACME (1)/X2024-ABC.PDF"},
		YearMonthDash: {"BETA (2)/2025.01-RECURSO.PDF"},
		YearOnly:      {"BETA (2)/EXTRATO 2023.PDF"},
		ContainsCNIS:  {"ACME (1)/CNIS JOAO.PDF"},
	}, report)

	again, err := scanner.ScanNamingIssues("/base")
	require.NoError(t, err)
	assert.Equal(t, report, again)
}

func TestScanNamingIssuesUnreadableSubtree(t *testing.T) {
	memFs := afero.NewMemMapFs()
	writeToFs(t, memFs,
		mockFile{path: "/base/LOCKED (1)/secret"},
		mockFile{path: "/base/OPEN (2)/lower.pdf"},
	)
	fs := deniedFs{memFs, map[string]bool{"/base/LOCKED (1)": true}}

	report, err := newTestScanner(fs).ScanNamingIssues("/base")
	require.NoError(t, err)
	assert.Equal(t, Report{Lowercase: {"OPEN (2)/lower.pdf"}}, report)
}

func TestScanNamingIssuesMissingRoot(t *testing.T) {
	_, err := newTestScanner(afero.NewMemMapFs()).ScanNamingIssues("/missing")
	assert.Equal(t, errors.NotFoundError{Path: "/missing"}, errors.RootCause(err))
}

func TestFindInactiveFolders(t *testing.T) {
	daysAgo := func(days int) time.Time {
		return now.Add(-time.Duration(days) * 24 * time.Hour)
	}

	fs := afero.NewMemMapFs()
	writeToFs(t, fs,
		mockFile{path: "/consultas/OLD/A.PDF", modTime: daysAgo(40)},
		mockFile{path: "/consultas/MIXED/A.PDF", modTime: daysAgo(90)},
		mockFile{path: "/consultas/MIXED/SUB/B.PDF", modTime: daysAgo(2)},
		mockFile{path: "/consultas/#ENCERRADOS/A.PDF", modTime: daysAgo(400)},
		mockFile{path: "/consultas/LOOSE.PDF", modTime: daysAgo(400)},
	)
	require.NoError(t, fs.MkdirAll("/consultas/EMPTY/SUB", 0755))

	scanner := newTestScanner(fs)
	inactive, err := scanner.FindInactiveFolders("/consultas", []string{"#ENCERRADOS"}, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"EMPTY", "OLD"}, inactive)

	inactive, err = scanner.FindInactiveFolders("/consultas", []string{"#ENCERRADOS"}, 45)
	require.NoError(t, err)
	assert.Equal(t, []string{"EMPTY"}, inactive)

	records, err := scanner.InactivityRecords("/consultas", []string{"#ENCERRADOS"}, 30)
	require.NoError(t, err)
	assert.Equal(t, []InactivityRecord{
		{Name: "EMPTY", Inactive: true},
		{Name: "MIXED", Inactive: false, LastModified: daysAgo(2)},
		{Name: "OLD", Inactive: true, LastModified: daysAgo(40)},
	}, records)
}

func TestFindInactiveFoldersUnreadable(t *testing.T) {
	memFs := afero.NewMemMapFs()
	writeToFs(t, memFs,
		mockFile{path: "/consultas/LOCKED/A.PDF", modTime: now.AddDate(-1, 0, 0)},
		mockFile{path: "/consultas/OLD/A.PDF", modTime: now.AddDate(-1, 0, 0)},
	)
	fs := deniedFs{memFs, map[string]bool{"/consultas/LOCKED": true}}

	inactive, err := newTestScanner(fs).FindInactiveFolders("/consultas", nil, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"OLD"}, inactive)
}

func TestFolderSizes(t *testing.T) {
	const mib = 1024 * 1024

	fs := afero.NewMemMapFs()
	writeToFs(t, fs,
		mockFile{path: "/base/HALF (1)/A.BIN", contents: strings.Repeat("x", mib)},
		mockFile{path: "/base/HALF (1)/SUB/B.BIN", contents: strings.Repeat("x", mib/2)},
		mockFile{path: "/base/SMALL (2)/A.TXT", contents: "tiny"},
		mockFile{path: "/base/AAA --- NAO CLIENTE/BIG.BIN", contents: strings.Repeat("x", 3*mib)},
		mockFile{path: "/base/LOOSE.BIN", contents: strings.Repeat("x", 2*mib)},
	)

	sizes, err := newTestScanner(fs).FolderSizes("/base", []string{"AAA --- NAO CLIENTE"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"HALF (1)": 1, "SMALL (2)": 0}, sizes)
}
