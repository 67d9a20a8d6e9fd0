package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	ExtractorPDFCPU    = "pdfcpu"
	ExtractorPdfToText = "pdftotext"
)

// TextExtractor turns a document on disk into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// NewExtractor returns the extractor named kind, pdftotext when kind is
// empty. pdftotextPath defaults to looking the binary up in PATH.
func NewExtractor(kind, pdftotextPath string) (TextExtractor, error) {
	switch kind {
	case ExtractorPDFCPU:
		return PDFCPUExtractor{}, nil
	case ExtractorPdfToText, "":
		if pdftotextPath == "" {
			pdftotextPath = "pdftotext"
		}
		return PdfToTextExtractor{Path: pdftotextPath}, nil
	default:
		return nil, fmt.Errorf("unknown text extractor %q", kind)
	}
}

// PdfToTextExtractor shells out to poppler's pdftotext.
type PdfToTextExtractor struct {
	Path string
}

func (e PdfToTextExtractor) Extract(ctx context.Context, path string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Path, path, "-")
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

// PDFCPUExtractor interprets the text operators of each page's content
// stream in process. It does not read font tables, so pages shown through a
// custom encoding fail with ErrUndecodableText instead of yielding partial
// text.
type PDFCPUExtractor struct{}

func (PDFCPUExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("pdfcpu read %s: %w", path, err)
	}

	var pages []string
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil {
			return "", fmt.Errorf("pdfcpu page %d of %s: %w", pageNr, path, err)
		}
		if r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("pdfcpu page %d of %s: %w", pageNr, path, err)
		}
		text, err := textFromContentStream(data)
		if err != nil {
			return "", fmt.Errorf("pdfcpu page %d of %s: %w", pageNr, path, err)
		}
		if text != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, "\n\f"), nil
}
