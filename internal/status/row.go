package status

import (
	"strings"
	"time"

	"pricewatch/internal/amount"
	"pricewatch/internal/due"
	"pricewatch/pkg/models"
)

// Header is the first row of the Unpaid and Paid tables.
var Header = []string{
	"invoice_date", "invoice_number", "seller", "total",
	"category", "due_date", "paid_flag", "days_display",
}

// Row is one invoice in a status table. Cells are kept as stored text.
type Row struct {
	InvoiceDate   string `json:"invoice_date"`
	InvoiceNumber string `json:"invoice_number"`
	Seller        string `json:"seller"`
	Total         string `json:"total"`
	Category      string `json:"category"`
	DueDate       string `json:"due_date"`
	PaidFlag      string `json:"paid_flag"`
	DaysDisplay   string `json:"days_display"`

	// DaysLeft is set by Reconcile for rows with a valid due date.
	DaysLeft *int `json:"days_left,omitempty"`
	// Alert is set by Reconcile when the row is due soon.
	Alert string `json:"alert,omitempty"`
}

// Key identifies an invoice across the status tables. The number alone may be
// empty or repeated, so the invoice date is part of the key.
type Key struct {
	InvoiceNumber string
	InvoiceDate   string
}

// Key returns the composite key of r.
func (r Row) Key() Key {
	return Key{InvoiceNumber: r.InvoiceNumber, InvoiceDate: r.InvoiceDate}
}

// Paid reports whether the paid flag reads PAID.
func (r Row) Paid() bool {
	return strings.EqualFold(strings.TrimSpace(r.PaidFlag), models.PaidFlagPaid)
}

// Values returns the cells in table column order.
func (r Row) Values() []string {
	return []string{
		r.InvoiceDate,
		r.InvoiceNumber,
		r.Seller,
		r.Total,
		r.Category,
		r.DueDate,
		r.PaidFlag,
		r.DaysDisplay,
	}
}

// RowFromValues maps stored cells onto a Row. Missing trailing cells are empty.
func RowFromValues(values []string) Row {
	get := func(i int) string {
		if i >= len(values) {
			return ""
		}
		return strings.TrimSpace(values[i])
	}
	return Row{
		InvoiceDate:   get(0),
		InvoiceNumber: get(1),
		Seller:        get(2),
		Total:         get(3),
		Category:      get(4),
		DueDate:       get(5),
		PaidFlag:      get(6),
		DaysDisplay:   get(7),
	}
}

// RowFromInvoice builds the status row of inv. Unpaid rows get their
// days_display computed against now; paid rows carry none.
func RowFromInvoice(inv *models.Invoice, now time.Time) Row {
	row := Row{
		InvoiceDate:   models.FormatDate(inv.InvoiceDate),
		InvoiceNumber: inv.InvoiceNumber,
		Seller:        inv.Seller,
		Total:         amount.Format(inv.Total, amount.Dot),
		Category:      string(inv.Category),
		DueDate:       models.FormatDate(inv.DueDate),
		PaidFlag:      models.PaidFlag(inv.Paid),
	}
	if !inv.Paid {
		row.DaysDisplay = due.ForDate(inv.DueDate, now).Display()
	}
	return row
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
