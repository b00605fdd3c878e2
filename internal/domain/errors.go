package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound        = errors.New("loan not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrDuplicatePending    = errors.New("borrower already has a pending loan")
	ErrConflict            = errors.New("concurrent modification, retries exhausted")
	ErrSessionExists       = errors.New("cash session already exists for this date")
	ErrSessionNotFound     = errors.New("no cash session for this date")
	ErrSessionNotOpen      = errors.New("cash session is not open")
)

// ValidationError reports malformed or out-of-range input. It is raised
// before any computation, so a validation failure has no partial effects.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for the given field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// OverpaymentError flags a tendered amount above the total outstanding. It is
// a warning, not a hard failure: the caller must re-submit with explicit
// confirmation, after which the allocation is capped at the outstanding total.
type OverpaymentError struct {
	Tendered    decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("tendered %s exceeds outstanding %s, confirmation required",
		e.Tendered.StringFixed(2), e.Outstanding.StringFixed(2))
}

// IsOverpayment reports whether err is an OverpaymentError.
func IsOverpayment(err error) bool {
	var oe *OverpaymentError
	return errors.As(err, &oe)
}
