package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"pricewatch/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "pricewatch",
	Short: "Invoice reconciliation and ingredient price anomaly engine",
	Long: `pricewatch keeps a per-category ledger of ingredient prices and the
paid/unpaid status of supplier invoices in a spreadsheet.

Each structured invoice is checked for ingredient price changes against the
ledger, recorded in the ledger, and added to the invoice status tables.
Paid invoices are moved out of the unpaid table and the remaining invoices are
sorted by days until due.

The store backend is chosen with STORE_BACKEND (sheets, xlsx or memory).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
