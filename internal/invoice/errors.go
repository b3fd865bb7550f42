package invoice

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInvoice is matched by every ValidationError.
	ErrInvalidInvoice = errors.New("invalid invoice")

	// ErrMalformedPayload is returned when the payload is not decodable JSON of the expected shape.
	ErrMalformedPayload = errors.New("malformed invoice payload")
)

// ValidationError names the first missing or malformed field of an invoice record.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets errors.Is(err, ErrInvalidInvoice) match.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInvoice
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
