// Package reconciliation runs one validated invoice through the price ledger,
// the anomaly detector and the status ledger.
//
// Runs are not transactional. A failed run may leave some ingredients upserted;
// re-running the same invoice converges because upserts within tolerance are
// no-ops and an existing status row is not appended again. Two concurrent
// deliveries of the same invoice can still both append a status row.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"pricewatch/internal/anomaly"
	"pricewatch/internal/ledger"
	"pricewatch/internal/logger"
	"pricewatch/internal/status"
	"pricewatch/pkg/models"
)

// PriceLedger is the ingredient price ledger.
type PriceLedger interface {
	EnsureTables(ctx context.Context) error
	Upsert(ctx context.Context, category models.Category, ing models.Ingredient, invoiceDate time.Time, seller string) (ledger.Result, error)
}

// ChangeDetector reports price changes against the current ledger.
type ChangeDetector interface {
	DetectChanges(ctx context.Context, category models.Category, ingredients []models.Ingredient) ([]anomaly.PriceChange, error)
}

// Orchestrator sequences one invoice through the ledgers.
type Orchestrator struct {
	prices   PriceLedger
	detector ChangeDetector
	statuses *status.Ledger

	// Clock returns the current time used for days_display of new rows.
	Clock func() time.Time

	log zerolog.Logger
}

// New creates an orchestrator. The status ledger's own Clock drives Reconcile.
func New(prices PriceLedger, detector ChangeDetector, statuses *status.Ledger) *Orchestrator {
	return &Orchestrator{
		prices:   prices,
		detector: detector,
		statuses: statuses,
		Clock:    time.Now,
		log:      logger.WithComponent("reconciliation"),
	}
}

// Prepare creates every table the orchestrator writes to.
func (o *Orchestrator) Prepare(ctx context.Context) error {
	const op = "Prepare"

	if err := o.prices.EnsureTables(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := o.statuses.EnsureTables(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Process runs inv through detection, upsert, status append and Reconcile.
//
// For each category, detection runs before any upsert of that category. A
// detection failure is recorded in the result and does not stop the run; any
// ledger or status store error aborts it.
func (o *Orchestrator) Process(ctx context.Context, inv *models.Invoice) (*Result, error) {
	const op = "Process"

	runID := uuid.NewString()
	log := logger.WithRequestID(runID).With().
		Str("component", "reconciliation").
		Str("invoice_number", inv.InvoiceNumber).
		Str("invoice_date", models.FormatDate(inv.InvoiceDate)).
		Logger()

	result := &Result{
		RunID:           runID,
		InvoiceNumber:   inv.InvoiceNumber,
		InvoiceDate:     models.FormatDate(inv.InvoiceDate),
		PriceChanges:    map[models.Category][]anomaly.PriceChange{},
		DueSoon:         []status.Row{},
		DetectionErrors: map[models.Category]string{},
	}

	log.Info().
		Int("ingredients", len(inv.Ingredients)).
		Msg("Processing invoice")

	byCategory := groupByCategory(inv.Ingredients)
	for _, category := range models.Categories {
		ingredients := byCategory[category]
		if len(ingredients) == 0 {
			continue
		}

		changes, err := o.detector.DetectChanges(ctx, category, ingredients)
		if err != nil {
			log.Error().
				Err(err).
				Str("category", string(category)).
				Msg("Price change detection failed, continuing")
			result.DetectionErrors[category] = err.Error()
		} else if len(changes) > 0 {
			result.PriceChanges[category] = changes
		}

		for _, ing := range ingredients {
			res, err := o.prices.Upsert(ctx, category, ing, inv.InvoiceDate, inv.Seller)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to upsert %q into %s: %w", op, ing.Name, category, err)
			}
			switch res {
			case ledger.Inserted:
				result.Ingredients.Inserted++
			case ledger.Updated:
				result.Ingredients.Updated++
			default:
				result.Ingredients.Unchanged++
			}
		}
	}

	action, err := o.recordStatus(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result.StatusRow = action

	rows, err := o.statuses.Reconcile(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result.DueSoon = dueSoon(rows)

	log.Info().
		Int("inserted", result.Ingredients.Inserted).
		Int("updated", result.Ingredients.Updated).
		Int("unchanged", result.Ingredients.Unchanged).
		Int("price_change_categories", len(result.PriceChanges)).
		Int("due_soon", len(result.DueSoon)).
		Str("status_row", string(action)).
		Msg("Invoice processed")

	return result, nil
}

// Reconcile runs the status reconciliation alone and returns the due-soon rows.
func (o *Orchestrator) Reconcile(ctx context.Context) ([]status.Row, error) {
	rows, err := o.statuses.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	return dueSoon(rows), nil
}

func (o *Orchestrator) recordStatus(ctx context.Context, inv *models.Invoice) (StatusAction, error) {
	row := status.RowFromInvoice(inv, o.Clock())
	key := row.Key()

	unpaid, err := o.statuses.Unpaid(ctx)
	if err != nil {
		return "", err
	}
	for _, existing := range unpaid {
		if existing.Key() != key {
			continue
		}
		if inv.Paid && !existing.Paid() {
			if err := o.statuses.MarkPaid(ctx, key); err != nil {
				return "", err
			}
			return StatusMerged, nil
		}
		return StatusExisting, nil
	}

	paid, err := o.statuses.Paid(ctx)
	if err != nil {
		return "", err
	}
	for _, existing := range paid {
		if existing.Key() == key {
			return StatusExisting, nil
		}
	}

	if err := o.statuses.Append(ctx, row); err != nil {
		return "", err
	}
	return StatusAppended, nil
}

func groupByCategory(ingredients []models.Ingredient) map[models.Category][]models.Ingredient {
	out := make(map[models.Category][]models.Ingredient)
	for _, ing := range ingredients {
		category := ing.Category
		if category == "" {
			category = models.CategoryOther
		}
		out[category] = append(out[category], ing)
	}
	return out
}
