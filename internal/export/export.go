// Package export builds the two-sheet export workbook for a finished batch.
package export

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/tabular"
)

// Options names the workbook sheets.
type Options struct {
	ValuesSheet  string
	SourcesSheet string
}

// DefaultOptions returns the standard sheet names.
func DefaultOptions() Options {
	return Options{ValuesSheet: "Dati Export", SourcesSheet: "Fonti Dati"}
}

// OptionsFromConfig fills unset sheet names with the defaults.
func OptionsFromConfig(cfg config.ExportConfig) Options {
	opts := DefaultOptions()
	if cfg.ValuesSheet != "" {
		opts.ValuesSheet = cfg.ValuesSheet
	}
	if cfg.SourcesSheet != "" {
		opts.SourcesSheet = cfg.SourcesSheet
	}
	return opts
}

// Export writes the values and sources sheets to path. It returns a
// *model.ExportBlockedError, and writes nothing, when any product is not
// completed or any field carries a blocking warning.
func Export(path string, products []*model.ProcessedProduct, schema *model.Schema, opts Options) error {
	if len(products) == 0 {
		return eris.New("export: no products")
	}
	if err := model.CheckExportable(products); err != nil {
		return err
	}
	for _, p := range products {
		if err := model.CheckAuditInvariant(p, schema); err != nil {
			return eris.Wrap(err, "export")
		}
	}

	if err := tabular.WriteWorkbook(path, Sheets(products, schema, opts)); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	zap.L().Info("export: workbook written",
		zap.String("path", path),
		zap.Int("products", len(products)),
	)
	return nil
}

// Sheets builds the values sheet (SKU, EAN, enabled fields in schema order)
// and the sources sheet (SKU and one provenance line per field).
func Sheets(products []*model.ProcessedProduct, schema *model.Schema, opts Options) []tabular.Sheet {
	fields := schema.Enabled()

	values := tabular.Sheet{Name: opts.ValuesSheet, Headers: []string{"SKU", "EAN"}}
	sources := tabular.Sheet{Name: opts.SourcesSheet, Headers: []string{"SKU"}}
	for _, f := range fields {
		values.Headers = append(values.Headers, f.Name)
		sources.Headers = append(sources.Headers, f.Name)
	}

	for _, p := range products {
		vrow := make([]string, 0, len(fields)+2)
		srow := make([]string, 0, len(fields)+1)
		vrow = append(vrow, p.SKU, p.EAN)
		srow = append(srow, p.SKU)
		for _, f := range fields {
			vrow = append(vrow, p.Values[f.Name])
			if info, ok := p.Audit[f.Name]; ok {
				srow = append(srow, info.Provenance())
			} else {
				srow = append(srow, "")
			}
		}
		values.Rows = append(values.Rows, vrow)
		sources.Rows = append(sources.Rows, srow)
	}
	return []tabular.Sheet{values, sources}
}
