package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/JustJay7/courtlight/internal/scraper"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/cenkalti/backoff/v4"
)

// ErrNoText is returned for documents whose extracted text is blank, such as
// scanned judgements without a text layer. Their hashes would all collide.
var ErrNoText = errors.New("document has no extractable text")

const maxFileNameLen = 240

// DocumentPath is where the document behind referenceURL is cached. The name
// is the query-escaped URL, which url.QueryUnescape reverses. URLs whose
// escaped form exceeds 240 bytes are stored under the hex SHA-256 of the URL
// plus ".pdf"; that fallback is one-way and the URL cannot be recovered from
// the name.
func DocumentPath(dir, referenceURL string) string {
	name := url.QueryEscape(referenceURL)
	if len(name) > maxFileNameLen {
		sum := sha256.Sum256([]byte(referenceURL))
		name = hex.EncodeToString(sum[:]) + ".pdf"
	}
	return filepath.Join(dir, name)
}

// Document is an acquired judgement document.
type Document struct {
	ReferenceURL string
	Path         string
	Text         string
	// TextHash is the hex SHA-256 of Text and the deduplication key.
	TextHash string
	// DocumentHash is the hex SHA-256 of the raw file.
	DocumentHash string
	Downloaded   bool
}

// Acquirer downloads judgement documents once and extracts their text.
type Acquirer struct {
	fetcher   *scraper.Fetcher
	extractor TextExtractor
	dir       string
	logger    *logger.Logger
}

func NewAcquirer(f *scraper.Fetcher, extractor TextExtractor, dir string, log *logger.Logger) *Acquirer {
	return &Acquirer{
		fetcher:   f,
		extractor: extractor,
		dir:       dir,
		logger:    log.With("component", "acquirer"),
	}
}

// Acquire makes sure the document is on disk, downloading it over s only when
// it is missing, then extracts and hashes its text. Extraction runs under the
// same retry policy as downloads, except for ErrUndecodableText which no
// retry can change.
func (a *Acquirer) Acquire(ctx context.Context, s *scraper.Session, referenceURL string) (*Document, error) {
	doc := &Document{
		ReferenceURL: referenceURL,
		Path:         DocumentPath(a.dir, referenceURL),
	}

	_, err := os.Stat(doc.Path)
	switch {
	case err == nil:
		a.logger.Info("Skipped downloading, exists", "url", referenceURL)
		if doc.DocumentHash, err = hashFile(doc.Path); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
		if doc.DocumentHash, err = a.fetcher.Download(ctx, s, referenceURL, doc.Path); err != nil {
			return nil, err
		}
		doc.Downloaded = true
	default:
		return nil, fmt.Errorf("stat %s: %w", doc.Path, err)
	}

	text, err := scraper.Retry(ctx, a.fetcher.RetryPolicy(), "extract "+doc.Path, func(ctx context.Context) (string, error) {
		text, err := a.extractor.Extract(ctx, doc.Path)
		if errors.Is(err, ErrUndecodableText) {
			return "", backoff.Permanent(err)
		}
		return text, err
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", referenceURL, ErrNoText)
	}

	sum := sha256.Sum256([]byte(text))
	doc.Text = text
	doc.TextHash = hex.EncodeToString(sum[:])
	return doc, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, 32*1024)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
