package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/catalog-enricher/internal/config"
	"github.com/sells-group/catalog-enricher/internal/cost"
	"github.com/sells-group/catalog-enricher/internal/enricher"
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/ocr"
	"github.com/sells-group/catalog-enricher/internal/pdfindex"
	"github.com/sells-group/catalog-enricher/internal/reconcile"
	"github.com/sells-group/catalog-enricher/internal/resilience"
	"github.com/sells-group/catalog-enricher/internal/store"
	"github.com/sells-group/catalog-enricher/internal/waterfall"
)

// Enricher fills unresolved fields with one external call.
type Enricher interface {
	Enrich(ctx context.Context, req enricher.Request) (*enricher.Response, error)
	Provider() string
}

// ImageSource loads a product photo from a URL or a local path.
type ImageSource interface {
	Fetch(ctx context.Context, ref string) (*enricher.Image, error)
}

// IndexSource returns the PDF evidence index for a set of files.
type IndexSource interface {
	Get(ctx context.Context, paths []string) (*pdfindex.Index, error)
}

// Options tunes one pipeline.
type Options struct {
	// Brand is used when the batch does not name one.
	Brand string
	// Throttle is the minimum spacing between external calls.
	Throttle time.Duration
	// CallTimeout bounds each external call independently of the batch
	// context.
	CallTimeout    time.Duration
	VisualFallback bool
	FetchImages    bool
	// Retry bounds per-product retries of rate-limited or transient failures.
	Retry resilience.RetryConfig
}

// OptionsFromConfig builds Options from the enrich section.
func OptionsFromConfig(cfg config.EnrichConfig) Options {
	return Options{
		Brand:          cfg.Brand,
		Throttle:       time.Duration(cfg.ThrottleMs) * time.Millisecond,
		CallTimeout:    time.Duration(cfg.CallTimeoutSecs) * time.Second,
		VisualFallback: cfg.VisualFallback,
		FetchImages:    cfg.FetchImages,
		Retry:          resilience.FromEnrichConfig(cfg),
	}
}

// Deps are the collaborators of a Pipeline. Enricher, Images, Rasterizer
// and PDFs may be nil, which disables the corresponding step.
type Deps struct {
	Store      store.Store
	Enricher   Enricher
	Images     ImageSource
	Rasterizer ocr.Rasterizer
	PDFs       IndexSource
	Resolver   *waterfall.Resolver
	Reconciler *reconcile.Reconciler
	Costs      *cost.Calculator
}

// Pipeline processes the products of a batch sequentially.
type Pipeline struct {
	opts       Options
	store      store.Store
	enricher   Enricher
	images     ImageSource
	raster     ocr.Rasterizer
	pdfs       IndexSource
	resolver   *waterfall.Resolver
	reconciler *reconcile.Reconciler
	costCalc   *cost.Calculator
	limiter    *rate.Limiter
}

// New creates a Pipeline.
func New(opts Options, deps Deps) *Pipeline {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 2 * time.Minute
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	limit := rate.Inf
	if opts.Throttle > 0 {
		limit = rate.Every(opts.Throttle)
	}

	p := &Pipeline{
		opts:       opts,
		store:      deps.Store,
		enricher:   deps.Enricher,
		images:     deps.Images,
		raster:     deps.Rasterizer,
		pdfs:       deps.PDFs,
		resolver:   deps.Resolver,
		reconciler: deps.Reconciler,
		costCalc:   deps.Costs,
		limiter:    rate.NewLimiter(limit, 1),
	}
	if p.resolver == nil {
		p.resolver = waterfall.NewResolver(waterfall.DefaultPriority(), nil, nil)
	}
	if p.reconciler == nil {
		p.reconciler = reconcile.New(reconcile.DefaultConfig())
	}
	if p.costCalc == nil {
		p.costCalc = cost.NewCalculator(cost.DefaultRates())
	}
	return p
}

// Run processes every product of b that is not yet completed, in row order.
// Field-level problems never fail the run and per-product failures mark only
// that product. An authentication or timeout failure stops the batch with a
// *FatalError. Cancelling ctx stops between products. Completed products are
// kept in every case.
func (p *Pipeline) Run(ctx context.Context, b *model.Batch) (*BatchResult, error) {
	log := zap.L().With(zap.String("batch", b.ID), zap.String("name", b.Name))
	start := time.Now()

	schema, err := b.Schema()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: schema")
	}

	res := &BatchResult{BatchID: b.ID}

	idx, err := p.indexPDFs(ctx, b.Inputs.PDFs)
	if err != nil {
		return nil, err
	}
	if idx != nil {
		res.PDFPages = idx.PageCount()
		res.PDFFailed = idx.Failed()
	}

	log.Info("pipeline: starting batch",
		zap.Int("products", len(b.Products)),
		zap.Int("pdf_pages", res.PDFPages),
	)

	for _, prod := range b.Products {
		if ctx.Err() != nil {
			res.Cancelled = true
			log.Warn("pipeline: batch cancelled", zap.Int("processed", res.Processed))
			break
		}
		if prod.Status == model.ProductCompleted {
			res.Skipped++
			continue
		}

		out := p.runProduct(ctx, b, schema, idx, prod, res)
		res.Processed++
		if out.Kind == OutcomeFatal {
			p.summarize(b, res, start)
			log.Error("pipeline: batch halted", zap.String("sku", prod.SKU), zap.Error(out.Err))
			return res, &FatalError{SKU: prod.SKU, Err: out.Err}
		}
	}

	p.summarize(b, res, start)
	log.Info("pipeline: batch finished",
		zap.Int("completed", res.Counts[model.ProductCompleted]),
		zap.Int("errors", res.Counts[model.ProductError]),
		zap.Int("blocking_issues", len(res.Blockers)),
		zap.Float64("cost_usd", res.Cost),
		zap.Duration("duration", res.Duration),
	)
	if res.Cancelled {
		return res, eris.Wrap(ctx.Err(), "pipeline: cancelled")
	}
	return res, nil
}

func (p *Pipeline) indexPDFs(ctx context.Context, paths []string) (*pdfindex.Index, error) {
	if p.pdfs == nil || len(paths) == 0 {
		return nil, nil
	}
	start := time.Now()
	idx, err := p.pdfs.Get(ctx, paths)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: index pdfs")
	}
	zap.L().Info("pipeline: phase complete",
		zap.String("phase", "pdf_index"),
		zap.Int("files", len(paths)),
		zap.Int("pages", idx.PageCount()),
		zap.Strings("failed", idx.Failed()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return idx, nil
}

// save persists a product. Store failures are logged, never fatal to the
// product.
func (p *Pipeline) save(ctx context.Context, batchID string, prod *model.ProcessedProduct) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveProduct(context.WithoutCancel(ctx), batchID, prod); err != nil {
		zap.L().Warn("pipeline: failed to save product",
			zap.String("batch", batchID),
			zap.String("sku", prod.SKU),
			zap.Error(err),
		)
	}
}
