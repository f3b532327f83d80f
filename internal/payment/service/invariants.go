package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/allocation"
	paymentdomain "github.com/smallbiznis/feeledger/internal/payment/domain"
)

// verifyInvariants rejects a payment that would corrupt the ledger before it is written.
func verifyInvariants(p *paymentdomain.Payment) error {
	if p.HasReduction && p.HasScholarship {
		return fmt.Errorf("%w: reduction and scholarship on one payment", paymentdomain.ErrInvariantViolation)
	}

	sum := decimal.Zero
	for _, d := range p.Details {
		if !d.AmountAllocated.IsPositive() {
			return fmt.Errorf("%w: non-positive line on tranche %s", paymentdomain.ErrInvariantViolation, d.TrancheID)
		}
		if !d.PreviousAmount.Add(d.AmountAllocated).Equal(d.NewTotalAmount) {
			return fmt.Errorf("%w: running total broken on tranche %s", paymentdomain.ErrInvariantViolation, d.TrancheID)
		}
		if d.NewTotalAmount.GreaterThan(d.RequiredAmountAtTime) {
			return fmt.Errorf("%w: tranche %s overpaid", paymentdomain.ErrInvariantViolation, d.TrancheID)
		}
		if d.WasReduced && p.PaymentType != string(allocation.PaymentTypeGlobalDiscount) {
			return fmt.Errorf("%w: reduced line on %s payment", paymentdomain.ErrInvariantViolation, p.PaymentType)
		}
		sum = sum.Add(d.AmountAllocated)
	}
	if !sum.Equal(p.TotalAmount) {
		return fmt.Errorf("%w: details sum %s, header %s", paymentdomain.ErrInvariantViolation, sum.StringFixed(2), p.TotalAmount.StringFixed(2))
	}
	return nil
}
