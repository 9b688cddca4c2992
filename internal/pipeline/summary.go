package pipeline

import (
	"time"

	"github.com/sells-group/catalog-enricher/internal/cost"
	"github.com/sells-group/catalog-enricher/internal/model"
)

// BatchResult summarizes one Run.
type BatchResult struct {
	BatchID string `json:"batch_id"`
	// Processed counts products attempted in this run; Skipped counts
	// products already completed.
	Processed int                         `json:"processed"`
	Skipped   int                         `json:"skipped"`
	Counts    map[model.ProductStatus]int `json:"counts"`
	Blockers  []model.Blocker             `json:"blockers,omitempty"`
	PDFPages  int                         `json:"pdf_pages"`
	PDFFailed []string                    `json:"pdf_failed,omitempty"`
	Usage     cost.Usage                  `json:"usage"`
	Cost      float64                     `json:"cost_usd"`
	Duration  time.Duration               `json:"duration"`
	Cancelled bool                        `json:"cancelled,omitempty"`
}

// Exportable reports whether every product completed without blocking
// issues.
func (r *BatchResult) Exportable() bool {
	return len(r.Blockers) == 0 &&
		r.Counts[model.ProductPending] == 0 &&
		r.Counts[model.ProductProcessing] == 0 &&
		r.Counts[model.ProductError] == 0
}

func (p *Pipeline) summarize(b *model.Batch, res *BatchResult, start time.Time) {
	res.Counts = b.Counts()
	res.Blockers = model.ExportBlockers(b.Products)
	res.Cost = p.costCalc.Estimate(res.Usage)
	res.Duration = time.Since(start)
}
