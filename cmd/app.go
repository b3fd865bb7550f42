package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"pricewatch/internal/anomaly"
	"pricewatch/internal/config"
	"pricewatch/internal/ledger"
	"pricewatch/internal/reconciliation"
	"pricewatch/internal/sheets"
	"pricewatch/internal/status"
	"pricewatch/internal/store"
	"pricewatch/internal/store/memory"
	"pricewatch/internal/xlsx"
)

// Operator-facing failure classes.
var (
	errReadInvoice    = errors.New("could not read invoice")
	errExtractInvoice = errors.New("could not extract structured data")
	errWriteLedger    = errors.New("could not write to ledger")
)

// app holds the components of one command run.
type app struct {
	orchestrator *reconciliation.Orchestrator
	statuses     *status.Ledger
	close        func() error
}

// newApp loads the configuration and wires the store and ledgers.
func newApp(ctx context.Context, log zerolog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	backend, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errWriteLedger, err)
	}

	log.Info().
		Str("backend", cfg.StoreBackend).
		Int("retry_attempts", cfg.RetryAttempts).
		Dur("retry_delay", cfg.RetryDelay).
		Msg("Store initialized")

	s := store.WithRetry(backend, cfg.RetryPolicy())
	prices := ledger.New(s, cfg.LedgerTables(), cfg.DecimalSeparator)
	statuses := status.New(s, cfg.StatusTables(), cfg.DecimalSeparator)
	orchestrator := reconciliation.New(prices, anomaly.NewDetector(prices), statuses)

	if err := orchestrator.Prepare(ctx); err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("%w: %w", errWriteLedger, err)
	}

	return &app{
		orchestrator: orchestrator,
		statuses:     statuses,
		close:        closeFn,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.BackendSheets:
		s, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case config.BackendXLSX:
		w, err := xlsx.Open(cfg.XLSXPath)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	case config.BackendMemory:
		return memory.New(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// createContext creates a context with timeout and signal handling
func createContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// writeJSON writes v as indented JSON to outputPath, or to w when outputPath is empty.
func writeJSON(w io.Writer, v any, outputPath string, log zerolog.Logger) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, jsonData, 0o644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(jsonData)).
			Msg("Output written to file")
		return nil
	}

	if _, err := w.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
