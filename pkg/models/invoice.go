package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only accepted date format, day-month-year with fixed widths.
const DateLayout = "02.01.2006"

// UnknownSeller is used when the extraction collaborator could not find a seller.
const UnknownSeller = "Unknown"

// Paid flag values as stored in the status tables.
const (
	PaidFlagPaid   = "PAID"
	PaidFlagUnpaid = "UNPAID"
)

// Category is the product group of an ingredient. Every category has its own ledger table.
type Category string

const (
	CategoryFood     Category = "FOOD"
	CategoryDrink    Category = "DRINK"
	CategoryAlcohol  Category = "ALCOHOL"
	CategoryChemical Category = "CHEMICAL"
	CategoryOther    Category = "OTHER"
)

// Categories lists all categories in processing order.
var Categories = []Category{
	CategoryFood,
	CategoryDrink,
	CategoryAlcohol,
	CategoryChemical,
	CategoryOther,
}

// ParseCategory returns the category for s. Only exact enum values are accepted.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Unit is the unit an ingredient price refers to.
type Unit string

const (
	UnitKilogram Unit = "kg"
	UnitLiter    Unit = "l"
	UnitPiece    Unit = "piece"
	UnitPack     Unit = "pack"
	UnitCase     Unit = "case"
)

type Invoice struct {
	// Identification
	InvoiceNumber string // May be empty, not unique on its own

	// Dates (day precision, UTC midnight)
	InvoiceDate time.Time // Date invoice was issued
	DueDate     time.Time // Payment due date

	// Parties and amounts
	Seller string          // Seller name, UnknownSeller if the receipt had none
	Total  decimal.Decimal // Gross total, two decimal places

	// Status
	Paid     bool     // Payment status flag
	Category Category // Dominant category of the invoice

	Ingredients []Ingredient // Line items in receipt order
}

type Ingredient struct {
	Name              string          // Natural key within a category
	Unit              Unit            // Unit the prices refer to
	NetPricePerUnit   decimal.Decimal // Net price, >= 0
	VATPercent        decimal.Decimal // 0-100
	GrossPricePerUnit decimal.Decimal // Expected to be net*(1+vat/100), not re-derived
	Category          Category        // Ledger table the ingredient belongs to
}

// PaidFlag returns the stored representation of a paid boolean.
func PaidFlag(paid bool) string {
	if paid {
		return PaidFlagPaid
	}
	return PaidFlagUnpaid
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses s with DateLayout. Both fields must be zero-padded; nothing is guessed.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("date %q does not match DD.MM.YYYY", s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q does not match DD.MM.YYYY: %w", s, err)
	}
	return t, nil
}
