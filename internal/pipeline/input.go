package pipeline

import (
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/tabular"
	"github.com/sells-group/catalog-enricher/internal/textnorm"
)

// UnknownID stands in for a missing SKU or EAN.
const UnknownID = "UNKNOWN"

// Columns names the identifier columns of the input files. Empty names fall
// back to "SKU", "EAN" and, for the manufacturer file, the base names.
type Columns struct {
	BaseSKU   string
	BaseEAN   string
	BaseImage string

	ManufacturerSKU         string
	ManufacturerEAN         string
	ManufacturerDescription string
}

// Input is everything BuildBatch needs to create a batch.
type Input struct {
	Name         string
	Base         []tabular.Row
	Manufacturer []tabular.Row
	Columns      Columns
	// Mapping sends a schema field ID to a manufacturer column whose value
	// is taken verbatim.
	Mapping map[string]string
	Inputs  model.BatchInputs
}

// BuildBatch creates one pending product per base row, in row order, and
// attaches the local MAPPING and MANUFACTURER candidates of its manufacturer
// row.
func BuildBatch(in Input, schema *model.Schema) *model.Batch {
	cols := in.Columns.withDefaults()
	b := model.NewBatch(in.Name, schema.Fields())
	b.Inputs = in.Inputs
	if len(in.Mapping) > 0 {
		b.Inputs.Mapping = in.Mapping
	}

	manu := newManufacturerIndex(in.Manufacturer, cols)

	for i, row := range in.Base {
		sku := row.Lookup(cols.BaseSKU, "SKU")
		if sku == "" {
			sku = UnknownID
		}
		ean := row.Lookup(cols.BaseEAN, "EAN")
		if ean == "" {
			ean = UnknownID
		}

		p := model.NewProduct(i+1, sku, ean)
		if cols.BaseImage != "" {
			p.ImageRef = row.Get(cols.BaseImage)
		}
		mrow, _ := manu.find(sku, ean)
		attachLocal(p, mrow, row, schema, in.Mapping, cols)
		b.Products = append(b.Products, p)
	}
	return b
}

func (c Columns) withDefaults() Columns {
	if c.BaseSKU == "" {
		c.BaseSKU = "SKU"
	}
	if c.BaseEAN == "" {
		c.BaseEAN = "EAN"
	}
	if c.ManufacturerSKU == "" {
		c.ManufacturerSKU = c.BaseSKU
	}
	if c.ManufacturerEAN == "" {
		c.ManufacturerEAN = c.BaseEAN
	}
	return c
}

type manufacturerIndex struct {
	bySKU map[string]tabular.Row
	byEAN map[string]tabular.Row
}

// newManufacturerIndex keys rows by normalized SKU and EAN. The first row
// wins on duplicates.
func newManufacturerIndex(rows []tabular.Row, cols Columns) manufacturerIndex {
	idx := manufacturerIndex{
		bySKU: make(map[string]tabular.Row, len(rows)),
		byEAN: make(map[string]tabular.Row, len(rows)),
	}
	for _, r := range rows {
		if k := textnorm.Normalize(r.Lookup(cols.ManufacturerSKU, "SKU")); k != "" {
			if _, dup := idx.bySKU[k]; !dup {
				idx.bySKU[k] = r
			}
		}
		if k := textnorm.Normalize(r.Lookup(cols.ManufacturerEAN, "EAN")); k != "" {
			if _, dup := idx.byEAN[k]; !dup {
				idx.byEAN[k] = r
			}
		}
	}
	return idx
}

func (m manufacturerIndex) find(sku, ean string) (tabular.Row, bool) {
	if sku != UnknownID {
		if r, ok := m.bySKU[textnorm.Normalize(sku)]; ok {
			return r, true
		}
	}
	if ean != UnknownID {
		if r, ok := m.byEAN[textnorm.Normalize(ean)]; ok {
			return r, true
		}
	}
	return tabular.Row{}, false
}

// attachLocal records the manufacturer context and the local candidates of
// p. Mapped columns are read from the manufacturer row, then the base row.
// mrow is empty when the product has no manufacturer row.
func attachLocal(
	p *model.ProcessedProduct,
	mrow, base tabular.Row,
	schema *model.Schema,
	mapping map[string]string,
	cols Columns,
) {
	for _, h := range mrow.Headers {
		if v := mrow.Get(h); v != "" {
			if p.ManufacturerContext == nil {
				p.ManufacturerContext = make(map[string]string, len(mrow.Values))
			}
			p.ManufacturerContext[h] = v
		}
	}
	if cols.ManufacturerDescription != "" {
		p.ManufacturerDescription = mrow.Get(cols.ManufacturerDescription)
	}

	headerByNorm := make(map[string]string, len(mrow.Headers))
	for _, h := range mrow.Headers {
		if k := textnorm.Normalize(h); k != "" {
			if _, dup := headerByNorm[k]; !dup {
				headerByNorm[k] = h
			}
		}
	}

	for _, f := range schema.Enabled() {
		if col, ok := mapping[f.ID]; ok && col != "" {
			v := mrow.Get(col)
			if v == "" {
				v = base.Get(col)
			}
			if v != "" {
				p.Candidates = append(p.Candidates, model.CandidateValue{
					FieldID:  f.ID,
					RawValue: v,
					Source:   model.SourceMapping,
					Label:    "Mappatura: " + col,
				})
			}
		}
		if h, ok := headerByNorm[textnorm.Normalize(f.Name)]; ok {
			if v := mrow.Get(h); v != "" {
				p.Candidates = append(p.Candidates, model.CandidateValue{
					FieldID:  f.ID,
					RawValue: v,
					Source:   model.SourceManufacturer,
					Label:    "File Produttore",
					Evidence: h + ": " + v,
				})
			}
		}
	}
}

// searchID blanks the placeholder so it never matches catalog text.
func searchID(id string) string {
	if id == UnknownID {
		return ""
	}
	return id
}
