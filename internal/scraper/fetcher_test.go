package scraper

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JustJay7/courtlight/internal/scraper/scrapertest"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(budget time.Duration) *Fetcher {
	return NewFetcher(logger.NewNop(),
		WithRetryPolicy(fastRetry(budget)),
		WithRequestsPerSecond(0),
		WithRequestTimeout(5*time.Second),
	)
}

func portalOf(p *scrapertest.Portal) Portal {
	return Portal{
		LandingURL:   p.LandingURL(),
		DirectoryURL: p.DirectoryURL(),
		SearchURL:    p.SearchURL(),
	}
}

func TestSessionKeepsPortalCookie(t *testing.T) {
	portal := scrapertest.New(t, scrapertest.Judge{ID: "1", Name: "A"})
	f := newTestFetcher(time.Second)
	ctx := context.Background()

	s, err := f.NewSession()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Do(ctx, Request{Method: http.MethodGet, URL: portal.LandingURL()})
	require.NoError(t, err)
	res, err := s.Do(ctx, Request{Method: http.MethodGet, URL: portal.DirectoryURL()})
	require.NoError(t, err)
	require.Contains(t, string(res.Body), `value="1"`)

	fresh, err := f.NewSession()
	require.NoError(t, err)
	defer fresh.Close()

	_, err = fresh.Do(ctx, Request{Method: http.MethodGet, URL: portal.DirectoryURL()})
	require.Error(t, err, "a session without the landing cookie must be rejected")
}

func TestDownloadStreamsAndHashes(t *testing.T) {
	portal := scrapertest.New(t)
	body := bytes.Repeat([]byte("%PDF-1.4 judgement text "), 10_000)
	portal.AddDocument("big.pdf", body)

	f := newTestFetcher(time.Second)
	s, err := f.NewSession()
	require.NoError(t, err)
	defer s.Close()

	dest := filepath.Join(t.TempDir(), "nested", "big.pdf")
	hash, err := f.Download(context.Background(), s, portal.DocumentURL("big.pdf"), dest)
	require.NoError(t, err)

	sum := sha256.Sum256(body)
	require.Equal(t, hex.EncodeToString(sum[:]), hash)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, body, got)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(dest), ".download-*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	portal := scrapertest.New(t)
	portal.AddDocument("flaky.pdf", []byte("%PDF"))
	portal.FailNext(scrapertest.DocumentsPath+"flaky.pdf", 2)

	f := newTestFetcher(5 * time.Second)
	s, err := f.NewSession()
	require.NoError(t, err)
	defer s.Close()

	dest := filepath.Join(t.TempDir(), "flaky.pdf")
	_, err = f.Download(context.Background(), s, portal.DocumentURL("flaky.pdf"), dest)
	require.NoError(t, err)
	require.Equal(t, 3, portal.Hits(scrapertest.DocumentsPath+"flaky.pdf"))
}

func TestDownloadFailureLeavesNoFile(t *testing.T) {
	portal := scrapertest.New(t)

	f := newTestFetcher(30 * time.Millisecond)
	s, err := f.NewSession()
	require.NoError(t, err)
	defer s.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "missing.pdf")
	_, err = f.Download(context.Background(), s, portal.DocumentURL("missing.pdf"), dest)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
