package pipeline

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/enricher"
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/pdfindex"
	"github.com/sells-group/catalog-enricher/internal/reconcile"
	"github.com/sells-group/catalog-enricher/internal/resilience"
	"github.com/sells-group/catalog-enricher/internal/waterfall"
)

// runProduct drives one product to completed or error, retrying rate-limited
// and transient failures with exponential backoff.
func (p *Pipeline) runProduct(
	ctx context.Context,
	b *model.Batch,
	schema *model.Schema,
	idx *pdfindex.Index,
	prod *model.ProcessedProduct,
	res *BatchResult,
) Outcome {
	log := zap.L().With(zap.String("batch", b.ID), zap.String("sku", prod.SKU), zap.Int("row", prod.Row))
	start := time.Now()

	for attempt := 0; ; attempt++ {
		prod.Attempts++
		out := classify(p.process(ctx, b, schema, idx, prod, res))

		switch out.Kind {
		case OutcomeOK:
			prod.Status = model.ProductCompleted
			prod.Error = ""
			prod.Log("info", "completed")
			p.save(ctx, b.ID, prod)
			log.Info("pipeline: product completed",
				zap.Int("values", len(prod.Values)),
				zap.Int("blocking", len(prod.BlockingIssues())),
				zap.Int("attempts", attempt+1),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return out

		case OutcomeRetryable:
			if attempt+1 >= p.opts.Retry.MaxAttempts {
				prod.Fail(fmt.Sprintf("giving up after %d attempts: %v", attempt+1, out.Err))
				p.save(ctx, b.ID, prod)
				log.Warn("pipeline: retries exhausted", zap.Int("attempts", attempt+1), zap.Error(out.Err))
				return Outcome{Kind: OutcomeFailed, Err: out.Err}
			}
			wait := resilience.Backoff(attempt, p.opts.Retry, out.Err)
			prod.Log("warn", fmt.Sprintf("attempt %d failed: %v; retrying in %s", attempt+1, out.Err, wait.Round(time.Millisecond)))
			p.save(ctx, b.ID, prod)
			log.Warn("pipeline: retrying product",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
				zap.Error(out.Err),
			)
			if err := resilience.Sleep(ctx, wait); err != nil {
				return p.interrupted(ctx, b.ID, prod, err)
			}

		case OutcomeFatal:
			prod.Fail(out.Err.Error())
			p.save(ctx, b.ID, prod)
			return out

		default:
			if ctx.Err() != nil {
				return p.interrupted(ctx, b.ID, prod, ctx.Err())
			}
			prod.Fail(out.Err.Error())
			p.save(ctx, b.ID, prod)
			log.Warn("pipeline: product failed", zap.Error(out.Err))
			return out
		}
	}
}

// interrupted returns a product caught by batch cancellation to pending so
// the next run picks it up again.
func (p *Pipeline) interrupted(ctx context.Context, batchID string, prod *model.ProcessedProduct, err error) Outcome {
	prod.Status = model.ProductPending
	prod.Log("warn", "interrupted: "+err.Error())
	p.save(ctx, batchID, prod)
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// process runs the per-product phases once: local resolution, PDF context,
// the external call for unresolved fields, merge, reconciliation and EMPTY
// marking.
func (p *Pipeline) process(
	ctx context.Context,
	b *model.Batch,
	schema *model.Schema,
	idx *pdfindex.Index,
	prod *model.ProcessedProduct,
	res *BatchResult,
) error {
	clearWork(prod)
	prod.Status = model.ProductProcessing
	p.save(ctx, b.ID, prod)

	local := p.resolver.ResolveLocal(prod, schema)
	prod.Log("info", fmt.Sprintf("local sources resolved %d/%d fields", local.FieldsResolved, local.FieldsTotal))

	if len(local.Unresolved) > 0 {
		if err := p.enrich(ctx, b, schema, idx, prod, local, res); err != nil {
			return err
		}
	}

	out := p.reconciler.Reconcile(prod, schema, p.resolver.Priority())
	if len(out.Derived) > 0 || len(out.Backfill) > 0 {
		prod.Log("info", fmt.Sprintf("derived %v, backfilled %v", out.Derived, out.Backfill))
	}
	if len(out.Conflicts) > 0 {
		prod.Log("error", fmt.Sprintf("dimension conflict on %v", out.Conflicts))
	}
	if empty := reconcile.MarkEmpty(prod, schema); len(empty) > 0 {
		prod.Log("warn", fmt.Sprintf("no value for %v", empty))
	}
	return nil
}

// clearWork drops output of an earlier attempt so every attempt starts from
// the product's own inputs.
func clearWork(prod *model.ProcessedProduct) {
	prod.Values = make(map[string]string)
	prod.Audit = make(map[string]model.SourceInfo)
	prod.GroundingURLs = nil
	prod.RawResponse = ""
	prod.Error = ""
}

func (p *Pipeline) enrich(
	ctx context.Context,
	b *model.Batch,
	schema *model.Schema,
	idx *pdfindex.Index,
	prod *model.ProcessedProduct,
	local *waterfall.Result,
	res *BatchResult,
) error {
	if p.enricher == nil {
		prod.Log("info", "no enrichment provider configured")
		return nil
	}
	priority := p.resolver.Priority()

	req := enricher.Request{
		SKU:                     prod.SKU,
		EAN:                     prod.EAN,
		Brand:                   p.brand(b),
		Fields:                  local.Unresolved,
		Known:                   maps.Clone(prod.Values),
		Manufacturer:            prod.ManufacturerContext,
		ManufacturerDescription: prod.ManufacturerDescription,
		TrustedDomains:          p.resolver.TrustedDomains(),
		Priority:                priority.Active(),
	}
	var ext waterfall.External

	if priority.Enabled(model.SourcePDF) {
		if pc, ok := idx.FindContext(searchID(prod.SKU), searchID(prod.EAN)); ok {
			req.PDFText = pc.RawText
			req.PDFLabel = pc.SourceLabel
			ext.PDFLabel = pc.SourceLabel
			ext.PDFEvidence = pc.RawText
			prod.Log("info", "PDF context found on "+pc.SourceLabel)
		}
		if img := p.pageImage(ctx, idx, prod); img != nil {
			req.PDFPage = img.image
			ext.HadImage = true
			if req.PDFLabel == "" {
				req.PDFLabel = img.label
				ext.PDFLabel = img.label
			}
		}
	}

	if priority.Enabled(model.SourceImage) {
		if img := p.productImage(ctx, prod); img != nil {
			req.ProductImage = img
			ext.HadImage = true
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.CallTimeout)
	resp, err := p.enricher.Enrich(callCtx, req)
	cancel()
	if resp != nil {
		res.Usage.Add(resp.Usage)
		prod.RawResponse = resp.Raw
	}
	if err != nil {
		return resilience.FromContext(err)
	}

	ext.Values = resp.Values
	ext.Hints = resp.Hints
	ext.GroundingURLs = resp.GroundingURLs
	prod.GroundingURLs = resp.GroundingURLs

	merged := p.resolver.MergeExternal(prod, schema, ext)
	prod.Log("info", fmt.Sprintf("%s filled %d/%d fields", p.enricher.Provider(), merged.FieldsResolved, merged.FieldsTotal))
	return nil
}

type renderedPage struct {
	image *enricher.Image
	label string
}

// pageImage renders the best catalog page for the SKU when visual fallback
// is on. Failures are logged on the product and skipped.
func (p *Pipeline) pageImage(ctx context.Context, idx *pdfindex.Index, prod *model.ProcessedProduct) *renderedPage {
	if !p.opts.VisualFallback || p.raster == nil {
		return nil
	}
	ref, ok := idx.FindBestPage(searchID(prod.SKU))
	if !ok {
		return nil
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.CallTimeout)
	defer cancel()
	data, err := p.raster.RasterizePage(callCtx, ref.Path, ref.Page)
	if err != nil || len(data) == 0 {
		prod.Log("warn", fmt.Sprintf("could not render %s: %v", ref.Label(), err))
		return nil
	}
	return &renderedPage{image: &enricher.Image{MIMEType: "image/jpeg", Data: data}, label: ref.Label()}
}

func (p *Pipeline) productImage(ctx context.Context, prod *model.ProcessedProduct) *enricher.Image {
	if !p.opts.FetchImages || p.images == nil || prod.ImageRef == "" {
		return nil
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.CallTimeout)
	defer cancel()
	img, err := p.images.Fetch(callCtx, prod.ImageRef)
	if err != nil {
		prod.Log("warn", fmt.Sprintf("could not load image %s: %v", prod.ImageRef, err))
		return nil
	}
	return img
}

func (p *Pipeline) brand(b *model.Batch) string {
	if b.Inputs.Brand != "" {
		return b.Inputs.Brand
	}
	return p.opts.Brand
}
