package invoice_test

import (
	"errors"
	"fmt"
	"strings"

	"pricewatch/internal/invoice"
)

// Example decodes an extracted invoice record into a validated invoice.
func Example() {
	payload := `{
		"invoice_number": "FV/2025/04/17",
		"invoice_date": "10.04.2025",
		"due_date": "24.04.2025",
		"seller": "Makro",
		"total": "1234.5",
		"paid": "UNPAID",
		"category": "FOOD",
		"ingredients": [
			{"name": "Corn cobs 2.5kg", "unit": "kg", "net_price_per_unit": "10.00",
			 "vat_percent": "5", "gross_price_per_unit": "10.50", "category": "FOOD"}
		]
	}`

	inv, err := invoice.NewValidator().Decode(strings.NewReader(payload))
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("%s from %s, total %s, due %s\n",
		inv.InvoiceNumber, inv.Seller, inv.Total.StringFixed(2), inv.DueDate.Format("02.01.2006"))
	fmt.Printf("%d ingredient(s), first: %s at %s/%s\n",
		len(inv.Ingredients), inv.Ingredients[0].Name, inv.Ingredients[0].NetPricePerUnit, inv.Ingredients[0].Unit)
	// Output:
	// FV/2025/04/17 from Makro, total 1234.50, due 24.04.2025
	// 1 ingredient(s), first: Corn cobs 2.5kg at 10/kg
}

// Example_validationError shows how the first bad field is reported.
func Example_validationError() {
	payload := `{"invoice_date": "2025-04-10", "due_date": "24.04.2025", "total": 10, "paid": false, "ingredients": []}`

	_, err := invoice.NewValidator().Decode(strings.NewReader(payload))

	var verr *invoice.ValidationError
	if errors.As(err, &verr) {
		fmt.Println(verr.Field)
	}
	fmt.Println(errors.Is(err, invoice.ErrInvalidInvoice))
	// Output:
	// invoice_date
	// true
}
