package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"pricewatch/internal/logger"
	"pricewatch/internal/status"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Move paid invoices and re-sort unpaid invoices by due date",
	Long: `Synchronize the invoice status tables without ingesting a new invoice.

Every row of the Unpaid table whose paid flag reads PAID is moved to the Paid
table. The remaining unpaid invoices get a fresh days-until-due value and are
sorted soonest first; rows with an unreadable due date go last.

Run it on a schedule so day counts and "due in <3 days" alerts stay current.
The invoices due soon are printed as JSON.`,
	Example: `  # Daily run
  pricewatch reconcile

  # Print every unpaid invoice, not only those due soon
  pricewatch reconcile --all`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	reconcileCmd.Flags().Bool("all", false, "Print all unpaid invoices instead of only those due soon")
	reconcileCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reconcile")

	outputPath, _ := cmd.Flags().GetString("output")
	all, _ := cmd.Flags().GetBool("all")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	if timeoutSecs <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	ctx, cancel := createContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	a, err := newApp(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close store")
		}
	}()

	var rows []status.Row
	if all {
		rows, err = a.statuses.Reconcile(ctx)
	} else {
		rows, err = a.orchestrator.Reconcile(ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("Reconciliation failed")
		return fmt.Errorf("%w: %w", errWriteLedger, err)
	}

	log.Info().
		Int("rows", len(rows)).
		Bool("all", all).
		Msg("Reconciliation completed")

	return writeJSON(cmd.OutOrStdout(), rows, outputPath, log)
}
