package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-enricher/internal/monitoring"
)

var monitorOnce bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Check stored batches against alert thresholds",
	Long: "Sums product outcomes of batches updated within monitoring.lookback_window_hours and " +
		"posts an alert to monitoring.webhook_url when the error rate exceeds its threshold. " +
		"Runs every monitoring.check_interval_secs until interrupted, or once with --once.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Monitoring.WebhookURL == "" && !monitorOnce {
			return eris.New("monitoring.webhook_url is required unless --once is set")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		checker := monitoring.NewChecker(
			monitoring.NewCollector(st),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		if !monitorOnce {
			checker.Run(ctx)
			return nil
		}

		alerts := checker.Check(ctx)
		if len(alerts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No alerts.")
			return nil
		}
		for _, a := range alerts {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", a.Severity, a.Message)
		}
		return nil
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single check and print the alerts")
	rootCmd.AddCommand(monitorCmd)
}
