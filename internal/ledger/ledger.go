// Package ledger keeps the last-seen unit prices of ingredients, one table per category.
//
// Table layout (row 0 is the header):
//
//	A invoice_date | B ingredient_name | C unit | D net_price_per_unit |
//	E vat_percent | F gross_price_per_unit | G seller
//
// The ingredient name is the natural key within a table. Rows are only ever
// inserted or overwritten here, never deleted. Upsert is a read followed by a
// conditional write with no lock held in between; concurrent writers to the
// same ingredient may lose an update, which is acceptable for advisory prices.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"pricewatch/internal/amount"
	"pricewatch/internal/logger"
	"pricewatch/internal/store"
	"pricewatch/pkg/models"
)

// Header is the first row of every category table.
var Header = []string{
	"invoice_date", "ingredient_name", "unit", "net_price_per_unit",
	"vat_percent", "gross_price_per_unit", "seller",
}

// Column positions within a ledger row.
const (
	colInvoiceDate = iota
	colName
	colUnit
	colNetPrice
	colVAT
	colGrossPrice
	colSeller
)

// Tolerance is the absolute net price difference below which a price counts as unchanged.
var Tolerance = decimal.New(1, -2)

// Result is the outcome of an Upsert.
type Result int

const (
	Unchanged Result = iota
	Inserted
	Updated
)

func (r Result) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Tables maps each category to the name of its ledger table.
type Tables map[models.Category]string

// DefaultTables names every table after its category.
func DefaultTables() Tables {
	t := make(Tables, len(models.Categories))
	for _, c := range models.Categories {
		t[c] = string(c)
	}
	return t
}

// Record is one parsed ledger row.
type Record struct {
	Row               int // position in the table, 0 is the header
	InvoiceDate       string
	Name              string
	Unit              string
	NetPricePerUnit   decimal.Decimal
	VATPercent        decimal.Decimal
	GrossPricePerUnit decimal.Decimal
	Seller            string
}

// Ledger is the ingredient price ledger.
type Ledger struct {
	store     store.Store
	tables    Tables
	separator string
	log       zerolog.Logger
}

// New creates a ledger over s. separator is used for new amounts only when a
// table has no existing amount to detect the separator from.
func New(s store.Store, tables Tables, separator string) *Ledger {
	if tables == nil {
		tables = DefaultTables()
	}
	if !amount.ValidSeparator(separator) {
		separator = amount.Comma
	}
	return &Ledger{
		store:     s,
		tables:    tables,
		separator: separator,
		log:       logger.WithComponent("ledger"),
	}
}

// Table returns the table name of category.
func (l *Ledger) Table(category models.Category) (string, error) {
	name, ok := l.tables[category]
	if !ok || name == "" {
		return "", fmt.Errorf("no ledger table configured for category %q", category)
	}
	return name, nil
}

// EnsureTables creates every category table that is missing.
func (l *Ledger) EnsureTables(ctx context.Context) error {
	const op = "EnsureTables"

	for _, c := range models.Categories {
		table, err := l.Table(c)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := l.store.EnsureTable(ctx, table, Header); err != nil {
			return fmt.Errorf("%s: failed to ensure table %s: %w", op, table, err)
		}
	}
	return nil
}

// Records reads the current records of category. Rows with an unparsable net
// price are skipped with a warning.
func (l *Ledger) Records(ctx context.Context, category models.Category) ([]Record, error) {
	const op = "Records"

	table, err := l.Table(category)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := l.store.ReadRows(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, table, err)
	}

	records := make([]Record, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		rec, err := parseRecord(rows[i], i)
		if err != nil {
			l.log.Warn().
				Err(err).
				Str("table", table).
				Int("row", i+1).
				Msg("Skipping invalid ledger row")
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Upsert inserts ing into the category table or overwrites its record when the
// net price moved by at least Tolerance. The table is re-read on every call.
func (l *Ledger) Upsert(ctx context.Context, category models.Category, ing models.Ingredient, invoiceDate time.Time, seller string) (Result, error) {
	const op = "Upsert"

	table, err := l.Table(category)
	if err != nil {
		return Unchanged, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := l.store.ReadRows(ctx, table)
	if err != nil {
		return Unchanged, fmt.Errorf("%s: failed to read %s: %w", op, table, err)
	}

	sep := amount.DetectSeparator(column(rows, colNetPrice), l.separator)
	row := formatRow(ing, invoiceDate, seller, sep)

	for i := 1; i < len(rows); i++ {
		if cell(rows[i], colName) != ing.Name {
			continue
		}

		existing, perr := amount.Parse(cell(rows[i], colNetPrice))
		if perr == nil && existing.Sub(ing.NetPricePerUnit).Abs().LessThan(Tolerance) {
			l.log.Debug().
				Str("table", table).
				Str("ingredient", ing.Name).
				Msg("Ingredient already recorded with same price")
			return Unchanged, nil
		}
		if perr != nil {
			l.log.Warn().
				Err(perr).
				Str("table", table).
				Str("ingredient", ing.Name).
				Msg("Stored price unreadable, overwriting")
		}

		if err := l.store.UpdateRow(ctx, table, i, row); err != nil {
			return Unchanged, fmt.Errorf("%s: failed to update %s in %s: %w", op, ing.Name, table, err)
		}
		l.log.Info().
			Str("table", table).
			Str("ingredient", ing.Name).
			Str("net_price", row[colNetPrice]).
			Msg("Updated ingredient")
		return Updated, nil
	}

	if err := l.store.AppendRow(ctx, table, row); err != nil {
		return Unchanged, fmt.Errorf("%s: failed to append %s to %s: %w", op, ing.Name, table, err)
	}
	l.log.Info().
		Str("table", table).
		Str("ingredient", ing.Name).
		Str("net_price", row[colNetPrice]).
		Msg("Inserted ingredient")
	return Inserted, nil
}

func formatRow(ing models.Ingredient, invoiceDate time.Time, seller, sep string) []string {
	return []string{
		models.FormatDate(invoiceDate),
		ing.Name,
		string(ing.Unit),
		amount.Format(ing.NetPricePerUnit, sep),
		amount.FormatPlain(ing.VATPercent, sep),
		amount.Format(ing.GrossPricePerUnit, sep),
		seller,
	}
}

func parseRecord(row []string, index int) (Record, error) {
	name := cell(row, colName)
	if name == "" {
		return Record{}, fmt.Errorf("missing ingredient name")
	}
	net, err := amount.Parse(cell(row, colNetPrice))
	if err != nil {
		return Record{}, fmt.Errorf("net price of %s: %w", name, err)
	}

	// vat and gross are informational; keep zero when unreadable
	vat, _ := amount.Parse(cell(row, colVAT))
	gross, _ := amount.Parse(cell(row, colGrossPrice))

	return Record{
		Row:               index,
		InvoiceDate:       cell(row, colInvoiceDate),
		Name:              name,
		Unit:              cell(row, colUnit),
		NetPricePerUnit:   net,
		VATPercent:        vat,
		GrossPricePerUnit: gross,
		Seller:            cell(row, colSeller),
	}, nil
}

func cell(row []string, index int) string {
	if index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func column(rows [][]string, index int) []string {
	if len(rows) <= 1 {
		return nil
	}
	out := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, cell(row, index))
	}
	return out
}
