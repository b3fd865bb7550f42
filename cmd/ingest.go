package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"pricewatch/internal/invoice"
	"pricewatch/internal/logger"
	"pricewatch/internal/reconciliation"
	"pricewatch/pkg/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [invoice.json]",
	Short: "Record a structured invoice and report price changes",
	Long: `Read one structured invoice (JSON) produced by the extraction step and
run it through the ledgers:

  1. detect ingredient price changes above 5% against the category ledger
  2. insert or update each ingredient in its category ledger
  3. add the invoice to the Unpaid or Paid status table
  4. move paid invoices out of Unpaid and sort Unpaid by days until due

The event payload (price changes by category and invoices due in less than
3 days) is printed as JSON for the notification step.

Reads standard input when no file or "-" is given.

Required environment variables (sheets backend):
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Google Sheets URL holding the ledger tables`,
	Example: `  # Ingest an invoice file
  pricewatch ingest invoice.json

  # Ingest from a pipe and save the event payload
  extract-invoice scan.pdf | pricewatch ingest -o events.json

  # Work against a local workbook
  STORE_BACKEND=xlsx XLSX_PATH=ledger.xlsx pricewatch ingest invoice.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ingestCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ingest")

	outputPath, _ := cmd.Flags().GetString("output")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	if timeoutSecs <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	source := "-"
	if len(args) == 1 {
		source = args[0]
	}

	data, err := readInvoice(source, cmd.InOrStdin())
	if err != nil {
		log.Error().Err(err).Str("file", source).Msg("Failed to read invoice")
		return fmt.Errorf("%w: %w", errReadInvoice, err)
	}

	inv, err := invoice.NewValidator().Decode(data)
	if err != nil {
		return handleValidationError(err, log)
	}

	ctx, cancel := createContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	result, err := ingest(ctx, inv, log)
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), result, outputPath, log)
}

func ingest(ctx context.Context, inv *models.Invoice, log zerolog.Logger) (*reconciliation.Result, error) {
	a, err := newApp(ctx, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := a.close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close store")
		}
	}()

	result, err := a.orchestrator.Process(ctx, inv)
	if err != nil {
		log.Error().Err(err).Msg("Invoice reconciliation failed")
		return nil, fmt.Errorf("%w: %w", errWriteLedger, err)
	}
	return result, nil
}

func readInvoice(source string, stdin io.Reader) (io.Reader, error) {
	var data []byte
	if source == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		data = b
	} else {
		info, err := os.Stat(source)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("path is not a regular file: %s", source)
		}
		if data, err = os.ReadFile(source); err != nil {
			return nil, err
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("invoice input is empty: %s", source)
	}
	return bytes.NewReader(data), nil
}

// handleValidationError names the offending field for the operator.
func handleValidationError(err error, log zerolog.Logger) error {
	var verr *invoice.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Error().
			Str("field", verr.Field).
			Interface("value", verr.Value).
			Msg("Invoice failed validation")
	case errors.Is(err, invoice.ErrMalformedPayload):
		log.Error().Err(err).Msg("Invoice payload is not valid JSON")
	default:
		log.Error().Err(err).Msg("Invoice could not be decoded")
	}
	return fmt.Errorf("%w: %w", errExtractInvoice, err)
}
