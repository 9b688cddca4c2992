package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"

	"github.com/rotisserie/eris"
)

// PdfToPPM renders PDF pages with the poppler pdftoppm CLI tool.
type PdfToPPM struct {
	binPath string
	dpi     int
}

// NewPdfToPPM creates a PdfToPPM rasterizer. Zero values select "pdftoppm"
// and 150 DPI.
func NewPdfToPPM(binPath string, dpi int) *PdfToPPM {
	if binPath == "" {
		binPath = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &PdfToPPM{binPath: binPath, dpi: dpi}
}

func (p *PdfToPPM) args(pdfPath string, page int) []string {
	n := strconv.Itoa(page)
	return []string{"-jpeg", "-r", strconv.Itoa(p.dpi), "-f", n, "-l", n, "-singlefile", pdfPath, "-"}
}

// RasterizePage writes one page as JPEG to stdout and returns the bytes.
func (p *PdfToPPM) RasterizePage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	if page < 1 {
		return nil, eris.Errorf("ocr: invalid page %d", page)
	}
	cmd := exec.CommandContext(ctx, p.binPath, p.args(pdfPath, page)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: pdftoppm failed for %s page %d: %s", pdfPath, page, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, eris.Errorf("ocr: pdftoppm produced no image for %s page %d", pdfPath, page)
	}
	return stdout.Bytes(), nil
}
