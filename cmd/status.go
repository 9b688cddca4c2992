package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-enricher/internal/model"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [batch-id]",
	Short: "List batches or show one batch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if len(args) == 0 {
			batches, err := st.ListBatches(ctx, statusLimit)
			if err != nil {
				return eris.Wrap(err, "status")
			}
			if len(batches) == 0 {
				fmt.Fprintln(os.Stderr, "No batches found.")
				return nil
			}
			formatBatchList(os.Stdout, batches)
			return nil
		}

		b, err := st.GetBatch(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "status")
		}
		formatBatch(os.Stdout, b)
		formatBlockers(os.Stdout, model.ExportBlockers(b.Products))
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "max number of batches to list")
	rootCmd.AddCommand(statusCmd)
}
