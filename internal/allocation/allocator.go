// Package allocation distributes a payment over a student's tranches.
package allocation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/pricing"
)

// PaymentType is decided once, before allocation, and never re-derived.
type PaymentType string

const (
	PaymentTypeNormal         PaymentType = "normal"
	PaymentTypeScholarship    PaymentType = "scholarship"
	PaymentTypeGlobalDiscount PaymentType = "global_discount"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeNormal, PaymentTypeScholarship, PaymentTypeGlobalDiscount:
		return true
	default:
		return false
	}
}

var (
	ErrInvalidAmount                = errors.New("invalid_amount")
	ErrInsufficientRemainingBalance = errors.New("insufficient_remaining_balance")
	ErrScholarshipDiscountConflict  = errors.New("scholarship_discount_conflict")
	ErrUnknownPaymentType           = errors.New("unknown_payment_type")
	ErrTrancheOrderConflict         = errors.New("tranche_order_conflict")
)

// DecideType picks the allocation strategy for a student.
func DecideType(hasScholarship, applyDiscount bool) (PaymentType, error) {
	switch {
	case hasScholarship && applyDiscount:
		return "", ErrScholarshipDiscountConflict
	case hasScholarship:
		return PaymentTypeScholarship, nil
	case applyDiscount:
		return PaymentTypeGlobalDiscount, nil
	default:
		return PaymentTypeNormal, nil
	}
}

// Line is one tranche as seen at allocation time.
type Line struct {
	TrancheID        snowflake.ID
	Order            int
	Required         decimal.Decimal
	ReductionApplied decimal.Decimal
	PreviouslyPaid   decimal.Decimal
}

// Owed is what remains due on the line, never negative.
func (l Line) Owed() decimal.Decimal {
	owed := l.Required.Sub(l.PreviouslyPaid)
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}

// LinesFrom joins a priced schedule with what has already been paid per tranche.
func LinesFrom(reqs []pricing.Requirement, paid map[snowflake.ID]decimal.Decimal) []Line {
	lines := make([]Line, 0, len(reqs))
	for _, req := range reqs {
		lines = append(lines, Line{
			TrancheID:        req.TrancheID,
			Order:            req.Order,
			Required:         req.Required,
			ReductionApplied: req.ReductionApplied,
			PreviouslyPaid:   paid[req.TrancheID],
		})
	}
	return lines
}

// TotalOwed sums Owed over lines.
func TotalOwed(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Owed())
	}
	return total
}

type Request struct {
	Type   PaymentType
	Amount decimal.Decimal
	Lines  []Line
}

// Detail is one allocation line, persisted as a payment detail.
type Detail struct {
	TrancheID            snowflake.ID
	Order                int
	AmountAllocated      decimal.Decimal
	PreviousAmount       decimal.Decimal
	NewTotalAmount       decimal.Decimal
	RequiredAmountAtTime decimal.Decimal
	IsFullyPaid          bool
	WasReduced           bool
}

type Result struct {
	Type      PaymentType
	Details   []Detail
	Allocated decimal.Decimal
	// Remainder is non-zero only when lines changed under the caller; treat it
	// as a data integrity problem.
	Remainder decimal.Decimal
}

// InsufficientBalanceError carries the amounts behind ErrInsufficientRemainingBalance.
type InsufficientBalanceError struct {
	Amount    decimal.Decimal
	Remaining decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: amount %s exceeds remaining %s",
		ErrInsufficientRemainingBalance, e.Amount.StringFixed(2), e.Remaining.StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientRemainingBalance
}

// Allocate walks lines ascending by order and fills each one up to what is
// still owed. Lines with nothing required or nothing owed are skipped.
func Allocate(req Request) (Result, error) {
	if !req.Type.Valid() {
		return Result{}, ErrUnknownPaymentType
	}
	if !req.Amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}

	lines, err := sortedLines(req.Lines)
	if err != nil {
		return Result{}, err
	}

	owed := TotalOwed(lines)
	if req.Amount.GreaterThan(owed) {
		return Result{}, &InsufficientBalanceError{Amount: req.Amount, Remaining: owed}
	}

	result := Result{Type: req.Type, Allocated: decimal.Zero}
	remaining := req.Amount
	for _, line := range lines {
		if !remaining.IsPositive() {
			break
		}
		if !line.Required.IsPositive() {
			continue
		}
		stillOwed := line.Owed()
		if !stillOwed.IsPositive() {
			continue
		}

		allocate := decimal.Min(remaining, stillOwed)
		newTotal := line.PreviouslyPaid.Add(allocate)
		result.Details = append(result.Details, Detail{
			TrancheID:            line.TrancheID,
			Order:                line.Order,
			AmountAllocated:      allocate,
			PreviousAmount:       line.PreviouslyPaid,
			NewTotalAmount:       newTotal,
			RequiredAmountAtTime: line.Required,
			IsFullyPaid:          newTotal.GreaterThanOrEqual(line.Required),
			WasReduced:           req.Type == PaymentTypeGlobalDiscount && line.ReductionApplied.IsPositive(),
		})
		result.Allocated = result.Allocated.Add(allocate)
		remaining = remaining.Sub(allocate)
	}
	result.Remainder = remaining
	return result, nil
}

func sortedLines(in []Line) ([]Line, error) {
	lines := append([]Line(nil), in...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Order < lines[j].Order })
	for i := 1; i < len(lines); i++ {
		if lines[i].Order == lines[i-1].Order {
			return nil, ErrTrancheOrderConflict
		}
	}
	return lines, nil
}
