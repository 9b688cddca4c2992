package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-enricher/internal/export"
	"github.com/sells-group/catalog-enricher/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <batch-id>",
	Short: "Export a batch to an audited workbook",
	Long:  "Writes the values and sources sheets. Refused while any product is incomplete or carries a blocking warning.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := st.GetBatch(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}
		schema, err := b.Schema()
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = b.Name + ".xlsx"
		}
		err = export.Export(out, b.Products, schema, export.OptionsFromConfig(cfg.Export))
		var blocked *model.ExportBlockedError
		if errors.As(err, &blocked) {
			formatBlockers(os.Stderr, blocked.Blockers)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Exported %d products to %s\n", len(b.Products), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output workbook path (defaults to <batch name>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
