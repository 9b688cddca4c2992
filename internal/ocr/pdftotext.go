package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-enricher/internal/model"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext -layout on the given PDF and splits stdout on
// form feeds, which pdftotext emits at every page end.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) (model.ParsedPdf, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return model.ParsedPdf{}, eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return model.ParsedPdf{
		FileName: filepath.Base(pdfPath),
		Path:     pdfPath,
		Pages:    SplitPages(stdout.String()),
	}, nil
}

// SplitPages splits form-feed separated text into numbered pages. The empty
// segment after the final form feed is dropped.
func SplitPages(text string) []model.PdfPage {
	parts := strings.Split(text, "\f")
	if n := len(parts); n > 1 && strings.TrimSpace(parts[n-1]) == "" {
		parts = parts[:n-1]
	}
	pages := make([]model.PdfPage, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, model.PdfPage{Number: i + 1, Text: part})
	}
	return pages
}
