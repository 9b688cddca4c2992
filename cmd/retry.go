package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/model"
)

var retryOut string

var retryCmd = &cobra.Command{
	Use:   "retry <batch-id>",
	Short: "Reset failed products of a batch and run it again",
	Long:  "Returns every product in error to pending, then resumes the batch. Completed products are never touched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.ResetFailed(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "reset failed products")
		}
		b, err := env.Store.GetBatch(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "load batch")
		}
		zap.L().Info("retrying batch",
			zap.String("batch", b.ID),
			zap.Int("reset", n),
			zap.Int("pending", b.Counts()[model.ProductPending]),
		)

		return runAndReport(ctx, env, b, retryOut)
	},
}

func init() {
	retryCmd.Flags().StringVar(&retryOut, "out", "", "export the workbook to this path when the batch is exportable")
	rootCmd.AddCommand(retryCmd)
}
