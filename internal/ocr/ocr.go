package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/model"
)

// PageExtractor extracts the page-ordered text layer of a PDF.
type PageExtractor interface {
	ExtractPages(ctx context.Context, pdfPath string) (model.ParsedPdf, error)
}

// Rasterizer renders a single PDF page as JPEG bytes.
type Rasterizer interface {
	RasterizePage(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// NewExtractor creates a PageExtractor based on config.
func NewExtractor(cfg config.PDFConfig) (PageExtractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// NewRasterizer creates the pdftoppm-backed Rasterizer.
func NewRasterizer(cfg config.PDFConfig) Rasterizer {
	return NewPdfToPPM(cfg.PdfToPPMPath, cfg.RasterDPI)
}
