package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/JustJay7/courtlight/internal/scraper/scrapertest"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testEnv(t *testing.T, portal *scrapertest.Portal) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("PORTAL_LANDING_URL", portal.LandingURL())
	t.Setenv("PORTAL_DIRECTORY_URL", portal.DirectoryURL())
	t.Setenv("PORTAL_SEARCH_URL", portal.SearchURL())
	t.Setenv("REQUESTS_PER_SECOND", "0")
	t.Setenv("RETRY_BASE_DELAY_MS", "1")
	t.Setenv("RETRY_BUDGET", "2")
	t.Setenv("DOCUMENTS_DIR", filepath.Join(dir, "judgements"))
	return dir
}

func TestParseDateRange(t *testing.T) {
	from, to, err := parseDateRange("01/02/2020", "29/02/2020")
	require.NoError(t, err)
	require.Equal(t, 2020, from.Year())
	require.Equal(t, 29, to.Day())

	_, _, err = parseDateRange("2020-02-01", "29/02/2020")
	require.Error(t, err)
	_, _, err = parseDateRange("01/03/2020", "29/02/2020")
	require.Error(t, err)
}

func TestScrapeCasesRejectsBadDatesBeforeNetwork(t *testing.T) {
	portal := scrapertest.New(t)
	dir := testEnv(t, portal)

	_, err := run(t, "scrape-cases", filepath.Join(dir, "db.sqlite"), "31/12/2020", "01/01/2020")
	require.Error(t, err)
	require.Zero(t, portal.Hits(scrapertest.LandingPath))

	_, err = run(t, "scrape-cases", filepath.Join(dir, "db.sqlite"))
	require.Error(t, err)
}

func TestScrapeThenPopulate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the text extractor")
	}

	portal := scrapertest.New(t,
		scrapertest.Judge{ID: "1", Name: "JUSTICE A", Pages: [][]scrapertest.Row{
			{{CaseNumber: "CW 1/2020", Document: "one.pdf", Date: "02/01/2020", Party: "P1"}},
			{{CaseNumber: "CW 2/2020", Document: "two.pdf", Date: "03/01/2020", Party: "P2"}},
		}},
	)
	portal.AddDocument("one.pdf", []byte("identical reasons"))
	portal.AddDocument("two.pdf", []byte("identical reasons"))

	dir := testEnv(t, portal)
	dbPath := filepath.Join(dir, "courtlight.db")

	out, err := run(t, "scrape-cases", dbPath, "01/01/2020", "31/01/2020", "--judge", "JUSTICE A")
	require.NoError(t, err)
	require.Contains(t, out, "1 judges, 2 records, 2 new judgements")

	extractor := filepath.Join(dir, "fake-pdftotext")
	require.NoError(t, os.WriteFile(extractor, []byte("#!/bin/sh\ncat \"$1\"\n"), 0755))
	t.Setenv("TEXT_EXTRACTOR", "pdftotext")
	t.Setenv("PDFTOTEXT_PATH", extractor)

	out, err = run(t, "populate-contents", dbPath)
	require.NoError(t, err)
	require.Contains(t, out, "2 pending, 1 stored, 1 merged as duplicates, 0 failed")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	var judgements []database.Judgement
	require.NoError(t, db.Preload("Cases").Find(&judgements).Error)
	require.Len(t, judgements, 1)
	require.Len(t, judgements[0].Cases, 2)

	var runs int64
	require.NoError(t, db.Model(&database.ScrapeRun{}).Count(&runs).Error)
	require.EqualValues(t, 2, runs)
}
