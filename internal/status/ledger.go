// Package status keeps one row per invoice in either the Unpaid or the Paid table.
//
// A row is created in one of the two tables at ingestion. A row in Unpaid whose
// paid flag reads PAID is moved to Paid by the next Reconcile; nothing ever moves
// back and rows are never deleted outside that move. Reconcile rewrites the whole
// Unpaid table, so row positions are not stable across calls.
package status

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"pricewatch/internal/amount"
	"pricewatch/internal/due"
	"pricewatch/internal/logger"
	"pricewatch/internal/store"
	"pricewatch/pkg/models"
)

const colTotal = 3

// ErrRowNotFound is returned by MarkPaid when no unpaid row has the key.
var ErrRowNotFound = fmt.Errorf("status row %w", store.ErrNotFound)

// Tables names the two status tables.
type Tables struct {
	Unpaid string
	Paid   string
}

// DefaultTables returns the default table names.
func DefaultTables() Tables {
	return Tables{
		Unpaid: "Unpaid Invoices",
		Paid:   "Paid Invoices",
	}
}

// Ledger is the invoice status ledger.
type Ledger struct {
	store     store.Store
	tables    Tables
	separator string

	// Clock returns the current time; days_display is computed against it.
	Clock func() time.Time

	log zerolog.Logger
}

// New creates a status ledger over s. separator is used for totals only when a
// table has no existing total to detect the separator from.
func New(s store.Store, tables Tables, separator string) *Ledger {
	if !amount.ValidSeparator(separator) {
		separator = amount.Comma
	}
	return &Ledger{
		store:     s,
		tables:    tables,
		separator: separator,
		Clock:     time.Now,
		log:       logger.WithComponent("status-ledger"),
	}
}

// Tables returns the configured table names.
func (l *Ledger) Tables() Tables {
	return l.tables
}

// EnsureTables creates the Unpaid and Paid tables if missing.
func (l *Ledger) EnsureTables(ctx context.Context) error {
	const op = "EnsureTables"

	for _, table := range []string{l.tables.Unpaid, l.tables.Paid} {
		if err := l.store.EnsureTable(ctx, table, Header); err != nil {
			return fmt.Errorf("%s: failed to ensure table %s: %w", op, table, err)
		}
	}
	return nil
}

func (l *Ledger) tableFor(row Row) string {
	if row.Paid() {
		return l.tables.Paid
	}
	return l.tables.Unpaid
}

// Append inserts row into the table matching its paid flag. The total is
// rewritten with two decimals and the separator the table already uses.
func (l *Ledger) Append(ctx context.Context, row Row) error {
	const op = "Append"

	table := l.tableFor(row)
	rows, err := l.store.ReadRows(ctx, table)
	if err != nil {
		return fmt.Errorf("%s: failed to read %s: %w", op, table, err)
	}

	row.Total = l.normalizeTotal(row.Total, l.detectSeparator(rows))
	if err := l.store.AppendRow(ctx, table, row.Values()); err != nil {
		return fmt.Errorf("%s: failed to append to %s: %w", op, table, err)
	}

	l.log.Info().
		Str("table", table).
		Str("invoice_number", row.InvoiceNumber).
		Str("invoice_date", row.InvoiceDate).
		Msg("Added invoice")
	return nil
}

// MarkPaid sets the paid flag of the first unpaid row with key. The row is
// moved to Paid by the next Reconcile. A row already flagged PAID is left as is.
func (l *Ledger) MarkPaid(ctx context.Context, key Key) error {
	const op = "MarkPaid"

	rows, err := l.store.ReadRows(ctx, l.tables.Unpaid)
	if err != nil {
		return fmt.Errorf("%s: failed to read %s: %w", op, l.tables.Unpaid, err)
	}

	for i := 1; i < len(rows); i++ {
		row := RowFromValues(rows[i])
		if row.Key() != key {
			continue
		}
		if row.Paid() {
			return nil
		}
		row.PaidFlag = models.PaidFlagPaid
		if err := l.store.UpdateRow(ctx, l.tables.Unpaid, i, row.Values()); err != nil {
			return fmt.Errorf("%s: failed to update %s: %w", op, l.tables.Unpaid, err)
		}
		l.log.Info().
			Str("invoice_number", key.InvoiceNumber).
			Str("invoice_date", key.InvoiceDate).
			Msg("Marked invoice paid")
		return nil
	}

	return fmt.Errorf("%s: %q of %s: %w", op, key.InvoiceNumber, key.InvoiceDate, ErrRowNotFound)
}

// Reconcile moves every PAID row from Unpaid to Paid, recomputes days_display
// of the remaining rows against Clock, and rewrites Unpaid sorted by days to due.
// Rows with an invalid due date sort last. It returns the rewritten unpaid rows.
//
// Any store error aborts and is returned; the Unpaid table may then be
// partially rewritten and the next Reconcile converges it.
func (l *Ledger) Reconcile(ctx context.Context) ([]Row, error) {
	const op = "Reconcile"

	if err := l.movePaid(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := l.store.ReadRows(ctx, l.tables.Unpaid)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to re-read %s: %w", op, l.tables.Unpaid, err)
	}

	now := l.Clock()
	sep := l.detectSeparator(rows)

	type sortable struct {
		row Row
		key float64
	}
	pending := make([]sortable, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		if isBlank(rows[i]) {
			continue
		}
		row := RowFromValues(rows[i])
		st := due.DaysToDue(row.DueDate, now)

		row.DaysDisplay = st.Display()
		row.Total = l.normalizeTotal(row.Total, sep)
		key := math.Inf(1)
		if st.Valid() {
			days := st.DaysLeft
			row.DaysLeft = &days
			row.Alert = st.Alert
			key = float64(days)
		} else {
			l.log.Warn().
				Err(st.Err).
				Str("invoice_number", row.InvoiceNumber).
				Str("due_date", row.DueDate).
				Msg("Unparsable due date")
		}
		pending = append(pending, sortable{row: row, key: key})
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].key != pending[j].key {
			return pending[i].key < pending[j].key
		}
		return pending[i].row.DaysDisplay < pending[j].row.DaysDisplay
	})

	out := make([]Row, len(pending))
	values := make([][]string, 0, len(pending)+1)
	values = append(values, Header)
	for i, p := range pending {
		out[i] = p.row
		values = append(values, p.row.Values())
	}

	if err := l.store.ReplaceRows(ctx, l.tables.Unpaid, values); err != nil {
		return nil, fmt.Errorf("%s: failed to rewrite %s: %w", op, l.tables.Unpaid, err)
	}

	l.log.Info().
		Int("unpaid", len(out)).
		Msg("Synchronized and sorted unpaid invoices")

	return out, nil
}

func (l *Ledger) movePaid(ctx context.Context) error {
	rows, err := l.store.ReadRows(ctx, l.tables.Unpaid)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", l.tables.Unpaid, err)
	}

	var queue []int
	for i := 1; i < len(rows); i++ {
		if RowFromValues(rows[i]).Paid() {
			queue = append(queue, i)
		}
	}
	if len(queue) == 0 {
		return nil
	}

	paidRows, err := l.store.ReadRows(ctx, l.tables.Paid)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", l.tables.Paid, err)
	}
	sep := l.detectSeparator(paidRows)

	// bottom-up so earlier indexes stay valid while rows shift
	for j := len(queue) - 1; j >= 0; j-- {
		idx := queue[j]
		row := RowFromValues(rows[idx])
		row.Total = l.normalizeTotal(row.Total, sep)
		row.PaidFlag = models.PaidFlagPaid
		row.DaysDisplay = ""

		if err := l.store.AppendRow(ctx, l.tables.Paid, row.Values()); err != nil {
			return fmt.Errorf("failed to append to %s: %w", l.tables.Paid, err)
		}
		if err := l.store.DeleteRow(ctx, l.tables.Unpaid, idx); err != nil {
			return fmt.Errorf("failed to delete row %d from %s: %w", idx, l.tables.Unpaid, err)
		}

		l.log.Info().
			Str("invoice_number", row.InvoiceNumber).
			Str("invoice_date", row.InvoiceDate).
			Msg("Moved invoice to paid")
	}
	return nil
}

// Unpaid returns the rows of the Unpaid table as stored.
func (l *Ledger) Unpaid(ctx context.Context) ([]Row, error) {
	return l.list(ctx, "Unpaid", l.tables.Unpaid)
}

// Paid returns the rows of the Paid table as stored.
func (l *Ledger) Paid(ctx context.Context) ([]Row, error) {
	return l.list(ctx, "Paid", l.tables.Paid)
}

func (l *Ledger) list(ctx context.Context, op, table string) ([]Row, error) {
	rows, err := l.store.ReadRows(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, table, err)
	}
	out := make([]Row, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		if isBlank(rows[i]) {
			continue
		}
		out = append(out, RowFromValues(rows[i]))
	}
	return out, nil
}

func (l *Ledger) detectSeparator(rows [][]string) string {
	var totals []string
	for i := 1; i < len(rows); i++ {
		if colTotal < len(rows[i]) {
			totals = append(totals, rows[i][colTotal])
		}
	}
	return amount.DetectSeparator(totals, l.separator)
}

// normalizeTotal renders total with two decimals. Unparsable totals are kept verbatim.
func (l *Ledger) normalizeTotal(total, sep string) string {
	d, err := amount.Parse(total)
	if err != nil {
		l.log.Warn().
			Str("total", total).
			Msg("Unparsable invoice total, keeping as is")
		return total
	}
	return amount.Format(d, sep)
}
