package reconcile

import (
	"github.com/sells-group/catalog-enricher/internal/model"
)

// MarkEmpty records every HARD field that is still unresolved. Fields that
// require evidence block export; inferrable ones are flagged for review.
// SOFT fields are left absent. It returns the names it marked.
func MarkEmpty(p *model.ProcessedProduct, schema *model.Schema) []string {
	var marked []string
	for _, f := range schema.Enabled() {
		if f.Class != model.ClassHard || p.Has(f.Name) {
			continue
		}
		info := model.SourceInfo{
			Source:     "Nessuna fonte",
			Confidence: model.ConfidenceLow,
			Status:     model.StatusEmpty,
		}
		if prev, ok := p.Audit[f.Name]; ok {
			info.Warnings = append(info.Warnings, prev.Warnings...)
		}
		if f.RequiresEvidence() {
			info.AddWarning(model.Block("required field %s has no verified value", f.Name))
		} else {
			info.AddWarning(model.Warn("field %s is empty", f.Name))
		}
		p.SetEmpty(f.Name, info)
		marked = append(marked, f.Name)
	}
	return marked
}
