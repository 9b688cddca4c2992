package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/cost"
	"github.com/sells-group/catalog-enricher/internal/enricher"
	"github.com/sells-group/catalog-enricher/internal/fetcher"
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/ocr"
	"github.com/sells-group/catalog-enricher/internal/pdfindex"
	"github.com/sells-group/catalog-enricher/internal/pipeline"
	"github.com/sells-group/catalog-enricher/internal/reconcile"
	"github.com/sells-group/catalog-enricher/internal/standardize"
	"github.com/sells-group/catalog-enricher/internal/store"
	"github.com/sells-group/catalog-enricher/internal/waterfall"
)

// pipelineEnv holds the store, enrichment client and pipeline needed by the
// enrich and retry commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Stager   *fetcher.Stager
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Store)
}

// loadSchema returns the configured schema, or the built-in default.
func loadSchema() (*model.Schema, error) {
	if cfg.Schema.Path == "" {
		return model.DefaultSchema(), nil
	}
	return model.LoadSchema(cfg.Schema.Path)
}

// initPipeline sets up the store, provider client, PDF index and resolution
// rules, and builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("enrich"); err != nil {
		return nil, err
	}

	priority, err := waterfall.ParsePriority(cfg.Enrich.Priority, cfg.Enrich.Disabled)
	if err != nil {
		return nil, eris.Wrap(err, "source priority")
	}

	extractor, err := ocr.NewExtractor(cfg.PDF)
	if err != nil {
		return nil, err
	}

	enr, err := enricher.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	stager, err := fetcher.NewStager(cfg.Fetch)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	std := standardize.New(standardize.RulesFromConfig(cfg.Standardize))
	pdfs := pdfindex.NewCache(extractor, pdfindex.Options{
		MinSKULen:    cfg.PDF.MinSKULen,
		MinEANLen:    cfg.PDF.MinEANLen,
		MinPageChars: cfg.PDF.MinPageChars,
		Concurrency:  cfg.PDF.Concurrency,
	})

	p := pipeline.New(pipeline.OptionsFromConfig(cfg.Enrich), pipeline.Deps{
		Store:      st,
		Enricher:   enr,
		Images:     enricher.NewImageFetcher(),
		Rasterizer: ocr.NewRasterizer(cfg.PDF),
		PDFs:       &stagedIndex{stager: stager, inner: pdfs},
		Resolver:   waterfall.NewResolver(priority, std, cfg.Enrich.TrustedDomains),
		Reconciler: reconcile.New(reconcile.FromConfig(cfg.Reconcile)),
		Costs:      cost.NewCalculator(cost.RatesFromConfig(cfg.Pricing)),
	})

	zap.L().Info("pipeline ready",
		zap.String("provider", enr.Provider()),
		zap.Strings("priority", sourceNames(priority.Active())),
		zap.String("pdf_provider", cfg.PDF.Provider),
	)

	return &pipelineEnv{Store: st, Pipeline: p, Stager: stager}, nil
}

// stagedIndex resolves remote and zipped catalog references to local PDFs
// before indexing. Batches keep the references as given, so a retry stages
// them again when the staging dir is gone.
type stagedIndex struct {
	stager *fetcher.Stager
	inner  pipeline.IndexSource
}

func (s *stagedIndex) Get(ctx context.Context, refs []string) (*pdfindex.Index, error) {
	paths, err := s.stager.StagePDFs(ctx, refs)
	if err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, paths)
}

func sourceNames(types []model.DataSourceType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
