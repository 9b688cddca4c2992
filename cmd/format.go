package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/pipeline"
)

var statusOrder = []model.ProductStatus{
	model.ProductPending,
	model.ProductProcessing,
	model.ProductCompleted,
	model.ProductError,
}

// formatBatchList writes a tabular list of batches to w.
func formatBatchList(out io.Writer, batches []model.BatchSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPENDING\tPROCESSING\tCOMPLETED\tERROR\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t----------\t---------\t-----\t-------")

	for _, b := range batches {
		name := b.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s", truncateID(b.ID), name)
		for _, s := range statusOrder {
			_, _ = fmt.Fprintf(w, "\t%d", b.Counts[s])
		}
		_, _ = fmt.Fprintf(w, "\t%s\n", b.UpdatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

// formatBatch writes one batch's header and per-product status to w.
func formatBatch(out io.Writer, b *model.Batch) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Batch:\t%s\n", b.ID)
	_, _ = fmt.Fprintf(w, "Name:\t%s\n", b.Name)
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", b.CreatedAt.Format(time.RFC3339))
	counts := b.Counts()
	for _, s := range statusOrder {
		_, _ = fmt.Fprintf(w, "%s:\t%d\n", s, counts[s])
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "ROW\tSKU\tSTATUS\tVALUES\tATTEMPTS\tERROR")
	for _, p := range b.Products {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
			p.Row, p.SKU, p.Status, len(p.Values), p.Attempts, truncate(p.Error, 60))
	}
	_ = w.Flush()
}

// formatBlockers lists blocking warnings, one per line.
func formatBlockers(out io.Writer, blockers []model.Blocker) {
	if len(blockers) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\n%d blocking issue(s):\n", len(blockers))
	for _, b := range blockers {
		_, _ = fmt.Fprintf(out, "  %s\n", b)
	}
}

// formatResult writes the outcome of one run to w.
func formatResult(out io.Writer, b *model.Batch, res *pipeline.BatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Batch:\t%s (%s)\n", b.ID, b.Name)
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", res.Processed)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", res.Skipped)
	for _, s := range statusOrder {
		_, _ = fmt.Fprintf(w, "%s:\t%d\n", s, res.Counts[s])
	}
	if res.PDFPages > 0 || len(res.PDFFailed) > 0 {
		_, _ = fmt.Fprintf(w, "PDF pages:\t%d\n", res.PDFPages)
	}
	for _, f := range res.PDFFailed {
		_, _ = fmt.Fprintf(w, "PDF failed:\t%s\n", f)
	}
	_, _ = fmt.Fprintf(w, "Calls:\t%d\n", res.Usage.Calls)
	_, _ = fmt.Fprintf(w, "Tokens:\t%d in / %d out\n", res.Usage.InputTokens, res.Usage.OutputTokens)
	_, _ = fmt.Fprintf(w, "Est. cost:\t$%.4f\n", res.Cost)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", res.Duration.Round(time.Millisecond))
	if res.Cancelled {
		_, _ = fmt.Fprintln(w, "Cancelled:\tyes")
	}
	exportable := "yes"
	if !res.Exportable() {
		exportable = "no"
	}
	_, _ = fmt.Fprintf(w, "Exportable:\t%s\n", exportable)
	_ = w.Flush()

	formatBlockers(out, res.Blockers)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
