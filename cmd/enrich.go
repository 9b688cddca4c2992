package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/export"
	"github.com/sells-group/catalog-enricher/internal/model"
	"github.com/sells-group/catalog-enricher/internal/monitoring"
	"github.com/sells-group/catalog-enricher/internal/pipeline"
	"github.com/sells-group/catalog-enricher/internal/tabular"
)

var (
	enrichName         string
	enrichBase         string
	enrichManufacturer string
	enrichPDFs         []string
	enrichMapping      map[string]string
	enrichBrand        string
	enrichColumns      pipeline.Columns
	enrichOut          string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Create a batch from input files and enrich it",
	Long: "Reads the base inventory and optional manufacturer file, indexes the PDF catalogs, " +
		"resolves every product through the source waterfall and persists the batch. " +
		"With --out the audited workbook is exported when nothing blocks it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		schema, err := loadSchema()
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		basePath, err := env.Stager.Stage(ctx, enrichBase)
		if err != nil {
			return eris.Wrap(err, "stage base file")
		}
		base, err := tabular.ReadTable(basePath)
		if err != nil {
			return eris.Wrap(err, "read base file")
		}
		var manu []tabular.Row
		if enrichManufacturer != "" {
			manuPath, err := env.Stager.Stage(ctx, enrichManufacturer)
			if err != nil {
				return eris.Wrap(err, "stage manufacturer file")
			}
			if manu, err = tabular.ReadTable(manuPath); err != nil {
				return eris.Wrap(err, "read manufacturer file")
			}
		}

		name := enrichName
		if name == "" {
			name = strings.TrimSuffix(path.Base(enrichBase), path.Ext(enrichBase))
		}

		b := pipeline.BuildBatch(pipeline.Input{
			Name:         name,
			Base:         base,
			Manufacturer: manu,
			Columns:      enrichColumns,
			Mapping:      enrichMapping,
			Inputs: model.BatchInputs{
				BaseFile:         enrichBase,
				ManufacturerFile: enrichManufacturer,
				PDFs:             enrichPDFs,
				Brand:            enrichBrand,
			},
		}, schema)

		if err := env.Store.SaveBatch(ctx, b); err != nil {
			return eris.Wrap(err, "save batch")
		}
		zap.L().Info("batch created",
			zap.String("batch", b.ID),
			zap.Int("products", len(b.Products)),
			zap.Int("manufacturer_rows", len(manu)),
			zap.Int("pdfs", len(enrichPDFs)),
		)

		return runAndReport(ctx, env, b, enrichOut)
	},
}

// runAndReport runs the batch, prints its summary and optionally exports it.
// A halted batch is reported before its error is returned.
func runAndReport(ctx context.Context, env *pipelineEnv, b *model.Batch, out string) error {
	res, err := env.Pipeline.Run(ctx, b)
	if res != nil {
		formatResult(os.Stdout, b, res)
	}
	monitoring.NotifyRun(ctx, monitoring.NewAlerter(cfg.Monitoring), monitoring.FromRun(b, res, err))
	if err != nil {
		var fatal *pipeline.FatalError
		if errors.As(err, &fatal) {
			return eris.Wrapf(err, "batch %s halted", truncateID(b.ID))
		}
		return eris.Wrap(err, "run batch")
	}

	if out == "" {
		return nil
	}
	schema, err := b.Schema()
	if err != nil {
		return err
	}
	return export.Export(out, b.Products, schema, export.OptionsFromConfig(cfg.Export))
}

func init() {
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "batch name (defaults to the base file name)")
	enrichCmd.Flags().StringVar(&enrichBase, "base", "", "base inventory file or URL, .xlsx or .csv (required)")
	enrichCmd.Flags().StringVar(&enrichManufacturer, "manufacturer", "", "manufacturer data file or URL, .xlsx or .csv")
	enrichCmd.Flags().StringSliceVar(&enrichPDFs, "pdf", nil, "PDF catalog, zip of PDFs or http(s)/ftp URL (repeatable)")
	enrichCmd.Flags().StringToStringVar(&enrichMapping, "map", nil, "field ID to manufacturer column, e.g. --map 5=Potenza")
	enrichCmd.Flags().StringVar(&enrichBrand, "brand", "", "brand passed to the enrichment call (overrides enrich.brand)")
	enrichCmd.Flags().StringVar(&enrichColumns.BaseSKU, "sku-col", "", "SKU column of the base file")
	enrichCmd.Flags().StringVar(&enrichColumns.BaseEAN, "ean-col", "", "EAN column of the base file")
	enrichCmd.Flags().StringVar(&enrichColumns.BaseImage, "image-col", "", "image URL or path column of the base file")
	enrichCmd.Flags().StringVar(&enrichColumns.ManufacturerSKU, "mfr-sku-col", "", "SKU column of the manufacturer file")
	enrichCmd.Flags().StringVar(&enrichColumns.ManufacturerEAN, "mfr-ean-col", "", "EAN column of the manufacturer file")
	enrichCmd.Flags().StringVar(&enrichColumns.ManufacturerDescription, "mfr-desc-col", "", "description column of the manufacturer file")
	enrichCmd.Flags().StringVar(&enrichOut, "out", "", "export the workbook to this path when the batch is exportable")
	_ = enrichCmd.MarkFlagRequired("base")
	rootCmd.AddCommand(enrichCmd)
}
