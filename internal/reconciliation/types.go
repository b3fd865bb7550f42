package reconciliation

import (
	"pricewatch/internal/anomaly"
	"pricewatch/internal/status"
	"pricewatch/pkg/models"
)

// StatusAction says what happened to the invoice's status row.
type StatusAction string

const (
	// StatusAppended means a new row was added to Unpaid or Paid.
	StatusAppended StatusAction = "appended"
	// StatusMerged means a PAID delivery flagged the row already waiting in Unpaid.
	StatusMerged StatusAction = "merged"
	// StatusExisting means a row with the same key was already present.
	StatusExisting StatusAction = "existing"
)

// Counts tallies ingredient upsert outcomes.
type Counts struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Result is the event payload of one run, handed to the external notifier.
type Result struct {
	RunID         string `json:"run_id"`
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`

	// PriceChanges holds only categories with at least one change.
	PriceChanges map[models.Category][]anomaly.PriceChange `json:"price_changes"`
	// DueSoon lists unpaid rows carrying an alert, in Unpaid order.
	DueSoon []status.Row `json:"due_soon"`

	Ingredients     Counts                     `json:"ingredients"`
	StatusRow       StatusAction               `json:"status_row"`
	DetectionErrors map[models.Category]string `json:"detection_errors,omitempty"`
}

// HasChanges reports whether any price change was detected.
func (r *Result) HasChanges() bool {
	for _, changes := range r.PriceChanges {
		if len(changes) > 0 {
			return true
		}
	}
	return false
}

func dueSoon(rows []status.Row) []status.Row {
	out := []status.Row{}
	for _, row := range rows {
		if row.Alert != "" {
			out = append(out, row)
		}
	}
	return out
}
