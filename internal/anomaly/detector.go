// Package anomaly reports ingredient prices that moved more than a threshold
// relative to the ledger.
//
// Detection must see the ledger before the same batch is upserted into it,
// otherwise "old" already equals "new".
package anomaly

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"pricewatch/internal/ledger"
	"pricewatch/internal/logger"
	"pricewatch/pkg/models"
)

// DefaultThresholdPercent is the relative change, in percent, a price must exceed.
var DefaultThresholdPercent = decimal.NewFromInt(5)

var hundred = decimal.NewFromInt(100)

// PriceChange is a detected relative price movement.
type PriceChange struct {
	Name          string          `json:"name"`
	OldPrice      decimal.Decimal `json:"old_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	ChangePercent decimal.Decimal `json:"change_percent"` // (new-old)/old*100, rounded to 2 places
}

// RecordSource reads the current ledger records of a category.
type RecordSource interface {
	Records(ctx context.Context, category models.Category) ([]ledger.Record, error)
}

// Detector compares new ingredient prices with the ledger.
type Detector struct {
	source RecordSource

	// ThresholdPercent is exclusive: a change of exactly the threshold is not reported.
	ThresholdPercent decimal.Decimal

	log zerolog.Logger
}

// NewDetector creates a detector with DefaultThresholdPercent.
func NewDetector(source RecordSource) *Detector {
	return &Detector{
		source:           source,
		ThresholdPercent: DefaultThresholdPercent,
		log:              logger.WithComponent("anomaly-detector"),
	}
}

// DetectChanges returns the price changes of ingredients against the current
// records of category. It never returns a nil slice on success.
func (d *Detector) DetectChanges(ctx context.Context, category models.Category, ingredients []models.Ingredient) ([]PriceChange, error) {
	const op = "DetectChanges"

	changes := []PriceChange{}
	if len(ingredients) == 0 {
		return changes, nil
	}

	records, err := d.source.Records(ctx, category)
	if err != nil {
		return changes, fmt.Errorf("%s: failed to read ledger for %s: %w", op, category, err)
	}

	byName := make(map[string]decimal.Decimal, len(records))
	for _, rec := range records {
		// first record wins, matching Upsert's lookup
		if _, seen := byName[rec.Name]; !seen {
			byName[rec.Name] = rec.NetPricePerUnit
		}
	}

	for _, ing := range ingredients {
		old, ok := byName[ing.Name]
		if !ok || !old.IsPositive() {
			continue
		}

		percent := ing.NetPricePerUnit.Sub(old).Div(old).Mul(hundred)
		if percent.Abs().LessThanOrEqual(d.ThresholdPercent) {
			continue
		}

		changes = append(changes, PriceChange{
			Name:          ing.Name,
			OldPrice:      old.Round(2),
			NewPrice:      ing.NetPricePerUnit.Round(2),
			ChangePercent: percent.Round(2),
		})
	}

	if len(changes) > 0 {
		d.log.Info().
			Str("category", string(category)).
			Int("changes", len(changes)).
			Msg("Price changes detected")
	} else {
		d.log.Debug().
			Str("category", string(category)).
			Msg("No significant price changes")
	}

	return changes, nil
}
