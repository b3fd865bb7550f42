package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"pricewatch/internal/logger"
	"pricewatch/internal/status"
	"pricewatch/pkg/models"
)

var markPaidCmd = &cobra.Command{
	Use:   "mark-paid",
	Short: "Flag an unpaid invoice as paid",
	Long: `Set the paid flag of an invoice in the Unpaid table to PAID.

An invoice is identified by its number and invoice date, since numbers alone
may repeat across sellers. The row is moved to the Paid table by the next
reconcile, which runs right away unless --no-reconcile is given.`,
	Example: `  pricewatch mark-paid --number FV/2025/04/17 --date 10.04.2025`,
	Args:    cobra.NoArgs,
	RunE:    runMarkPaid,
}

func init() {
	rootCmd.AddCommand(markPaidCmd)

	markPaidCmd.Flags().String("number", "", "Invoice number (may be empty)")
	markPaidCmd.Flags().String("date", "", "Invoice date (DD.MM.YYYY)")
	markPaidCmd.Flags().Bool("no-reconcile", false, "Only set the flag, do not move the row")
	markPaidCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
	_ = markPaidCmd.MarkFlagRequired("date")
}

func runMarkPaid(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("mark-paid")

	number, _ := cmd.Flags().GetString("number")
	date, _ := cmd.Flags().GetString("date")
	noReconcile, _ := cmd.Flags().GetBool("no-reconcile")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	if timeoutSecs <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	invoiceDate, err := models.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return fmt.Errorf("invalid --date %q, use DD.MM.YYYY: %w", date, err)
	}
	key := status.Key{
		InvoiceNumber: strings.TrimSpace(number),
		InvoiceDate:   models.FormatDate(invoiceDate),
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

	if err := a.statuses.MarkPaid(ctx, key); err != nil {
		if errors.Is(err, status.ErrRowNotFound) {
			return fmt.Errorf("no unpaid invoice %q dated %s", key.InvoiceNumber, key.InvoiceDate)
		}
		return fmt.Errorf("%w: %w", errWriteLedger, err)
	}

	if noReconcile {
		return nil
	}
	if _, err := a.statuses.Reconcile(ctx); err != nil {
		return fmt.Errorf("%w: %w", errWriteLedger, err)
	}

	log.Info().
		Str("invoice_number", key.InvoiceNumber).
		Str("invoice_date", key.InvoiceDate).
		Msg("Invoice moved to paid")
	return nil
}
