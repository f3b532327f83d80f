package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/feeledger/internal/allocation"
)

var (
	ErrValidation                   = errors.New("validation_error")
	ErrPaymentNotFound              = errors.New("payment_not_found")
	ErrDiscountIneligible           = errors.New("discount_ineligible")
	ErrDuplicateReceiptNumber       = errors.New("duplicate_receipt_number")
	ErrInvariantViolation           = errors.New("ledger_invariant_violation")
	ErrInsufficientRemainingBalance = allocation.ErrInsufficientRemainingBalance
	ErrScholarshipDiscountConflict  = allocation.ErrScholarshipDiscountConflict
)

// InsufficientRemainingBalanceError reports the amount asked and what is still owed.
type InsufficientRemainingBalanceError = allocation.InsufficientBalanceError

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every malformed field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// DiscountIneligibleError carries every discount rule the payer failed.
type DiscountIneligibleError struct {
	Reasons []string
}

func (e *DiscountIneligibleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDiscountIneligible, strings.Join(e.Reasons, ", "))
}

func (e *DiscountIneligibleError) Is(target error) bool { return target == ErrDiscountIneligible }
