// Package invoice is the trust boundary for structured invoice records.
//
// Records arrive from an extraction collaborator (OCR plus an LLM) and carry no
// schema guarantee. The Validator decodes one JSON object, rejects unknown fields,
// and either returns a normalized models.Invoice or a *ValidationError that names
// the first missing or malformed field. Downstream packages assume its invariants:
//   - invoice_date and due_date parsed with the fixed DD.MM.YYYY layout
//   - total rounded to two decimal places
//   - category and unit restricted to their enums
//   - seller defaulted to "Unknown"
package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"pricewatch/internal/logger"
	"pricewatch/pkg/models"
)

// Payload is the invoice record as delivered by the extraction collaborator.
// Pointer fields distinguish an absent field from a zero value.
type Payload struct {
	InvoiceNumber *string              `json:"invoice_number"`
	InvoiceDate   *string              `json:"invoice_date"`
	DueDate       *string              `json:"due_date"`
	Seller        *string              `json:"seller"`
	Total         *decimal.Decimal     `json:"total"`
	Paid          json.RawMessage      `json:"paid"`
	Category      *string              `json:"category"`
	Ingredients   *[]IngredientPayload `json:"ingredients"`
}

// IngredientPayload is one line item of a Payload.
type IngredientPayload struct {
	Name              string           `json:"name" validate:"required"`
	Unit              string           `json:"unit" validate:"required,oneof=kg l piece pack case"`
	NetPricePerUnit   *decimal.Decimal `json:"net_price_per_unit" validate:"required"`
	VATPercent        *decimal.Decimal `json:"vat_percent" validate:"required"`
	GrossPricePerUnit *decimal.Decimal `json:"gross_price_per_unit" validate:"required"`
	Category          string           `json:"category" validate:"required,oneof=FOOD DRINK ALCOHOL CHEMICAL OTHER"`
}

var hundred = decimal.NewFromInt(100)

// Validator is the trust boundary between extracted data and the ledgers.
type Validator struct {
	validate *validator.Validate
	log      zerolog.Logger
}

// NewValidator creates a validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate: v,
		log:      logger.WithComponent("invoice-validator"),
	}
}

// Decode reads a single JSON payload from r and validates it.
// Unknown fields are rejected.
func (v *Validator) Decode(r io.Reader) (*models.Invoice, error) {
	const op = "Decode"

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedPayload, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedPayload, err)
		}
		if verr := locateBadField("", data, reflect.TypeOf(Payload{})); verr != nil {
			return nil, verr
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedPayload, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%s: %w: trailing data after invoice object", op, ErrMalformedPayload)
	}

	return v.Validate(&p)
}

// Validate normalizes p into an Invoice or returns a *ValidationError naming
// the first missing or malformed field.
func (v *Validator) Validate(p *Payload) (*models.Invoice, error) {
	if p == nil {
		return nil, NewValidationError("payload", nil, "is missing")
	}

	invoiceDate, err := parseDateField("invoice_date", p.InvoiceDate)
	if err != nil {
		return nil, err
	}

	dueDate, err := parseDateField("due_date", p.DueDate)
	if err != nil {
		return nil, err
	}

	if p.Total == nil {
		return nil, NewValidationError("total", nil, "is required")
	}

	paid, err := parsePaid(p.Paid)
	if err != nil {
		return nil, err
	}

	seller := models.UnknownSeller
	if p.Seller != nil && strings.TrimSpace(*p.Seller) != "" {
		seller = strings.TrimSpace(*p.Seller)
	}

	if p.Ingredients == nil {
		return nil, NewValidationError("ingredients", nil, "is required (may be empty)")
	}

	category := models.CategoryOther
	if p.Category != nil {
		c, ok := models.ParseCategory(*p.Category)
		if !ok {
			return nil, NewValidationError("category", *p.Category, "must be one of FOOD, DRINK, ALCOHOL, CHEMICAL, OTHER")
		}
		category = c
	}

	ingredients := make([]models.Ingredient, 0, len(*p.Ingredients))
	for i, raw := range *p.Ingredients {
		ing, err := v.validateIngredient(i, raw)
		if err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ing)
	}

	var number string
	if p.InvoiceNumber != nil {
		number = strings.TrimSpace(*p.InvoiceNumber)
	}

	if dueDate.Before(invoiceDate) {
		v.log.Warn().
			Str("invoice_number", number).
			Str("invoice_date", models.FormatDate(invoiceDate)).
			Str("due_date", models.FormatDate(dueDate)).
			Msg("Due date precedes invoice date")
	}

	return &models.Invoice{
		InvoiceNumber: number,
		InvoiceDate:   invoiceDate,
		DueDate:       dueDate,
		Seller:        seller,
		Total:         p.Total.Round(2),
		Paid:          paid,
		Category:      category,
		Ingredients:   ingredients,
	}, nil
}

func (v *Validator) validateIngredient(index int, raw IngredientPayload) (models.Ingredient, error) {
	prefix := fmt.Sprintf("ingredients[%d]", index)

	raw.Name = strings.TrimSpace(raw.Name)
	if err := v.validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return models.Ingredient{}, NewValidationError(prefix+"."+fe.Field(), fe.Value(), "failed '"+fe.Tag()+"' check")
		}
		return models.Ingredient{}, NewValidationError(prefix, nil, err.Error())
	}

	if raw.NetPricePerUnit.IsNegative() {
		return models.Ingredient{}, NewValidationError(prefix+".net_price_per_unit", raw.NetPricePerUnit.String(), "must not be negative")
	}
	if raw.VATPercent.IsNegative() || raw.VATPercent.GreaterThan(hundred) {
		return models.Ingredient{}, NewValidationError(prefix+".vat_percent", raw.VATPercent.String(), "must be between 0 and 100")
	}

	category, _ := models.ParseCategory(raw.Category)

	return models.Ingredient{
		Name:              raw.Name,
		Unit:              models.Unit(raw.Unit),
		NetPricePerUnit:   *raw.NetPricePerUnit,
		VATPercent:        *raw.VATPercent,
		GrossPricePerUnit: *raw.GrossPricePerUnit,
		Category:          category,
	}, nil
}

func parseDateField(field string, value *string) (time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return time.Time{}, NewValidationError(field, nil, "is required")
	}
	t, err := models.ParseDate(*value)
	if err != nil {
		return time.Time{}, NewValidationError(field, *value, "must be a DD.MM.YYYY date")
	}
	return t, nil
}

func parsePaid(raw json.RawMessage) (bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, NewValidationError("paid", nil, "is required")
	}

	var b bool
	if err := json.Unmarshal(trimmed, &b); err == nil {
		return b, nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case models.PaidFlagPaid:
			return true, nil
		case models.PaidFlagUnpaid:
			return false, nil
		}
	}

	return false, NewValidationError("paid", string(trimmed), "must be true, false, \"PAID\" or \"UNPAID\"")
}

// locateBadField decodes raw field by field against the struct type t and returns
// a ValidationError for the first field that does not fit. Known fields are checked
// in declaration order, then unknown fields in name order.
func locateBadField(prefix string, raw []byte, t reflect.Type) *ValidationError {
	var obj map[string]json.RawMessage
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&obj); err != nil || obj == nil {
		return NewValidationError(fieldPath(prefix, ""), nil, "must be a JSON object")
	}

	known := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		known[name] = true

		value, ok := obj[name]
		if !ok {
			continue
		}
		if verr := checkField(fieldPath(prefix, name), value, f.Type); verr != nil {
			return verr
		}
	}

	var unknown []string
	for name := range obj {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return NewValidationError(fieldPath(prefix, unknown[0]), nil, "is not a recognized field")
	}
	return nil
}

func checkField(path string, value json.RawMessage, t reflect.Type) *ValidationError {
	elem := t
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}

	if elem.Kind() == reflect.Slice && elem.Elem().Kind() == reflect.Struct {
		var items []json.RawMessage
		if err := json.Unmarshal(value, &items); err != nil {
			return NewValidationError(path, string(value), "must be a JSON array")
		}
		for i, item := range items {
			if verr := locateBadField(fmt.Sprintf("%s[%d]", path, i), item, elem.Elem()); verr != nil {
				return verr
			}
		}
		return nil
	}

	target := reflect.New(t)
	if err := json.Unmarshal(value, target.Interface()); err != nil {
		return NewValidationError(path, string(value), "is malformed: "+err.Error())
	}
	return nil
}

func fieldPath(prefix, name string) string {
	switch {
	case prefix == "" && name == "":
		return "payload"
	case prefix == "":
		return name
	case name == "":
		return prefix
	}
	return prefix + "." + name
}
