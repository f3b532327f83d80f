package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reasons a student does not qualify for the global discount.
const (
	ReasonDiscountDisabled    = "discount_disabled"
	ReasonHasScholarship      = "has_scholarship"
	ReasonHasExistingPayments = "has_existing_payments"
	ReasonDeadlinePassed      = "deadline_passed"
	ReasonAmountMismatch      = "amount_mismatch"
	ReasonNothingOwed         = "nothing_owed"
)

type EligibilityInput struct {
	HasScholarship      bool
	HasExistingPayments bool
	// ProposedAmount is nil when no payment is being made, e.g. when the
	// status screen asks whether the discount is still on offer.
	ProposedAmount *decimal.Decimal
	TotalRemaining decimal.Decimal
	PaymentDate    time.Time
}

type Eligibility struct {
	Eligible        bool            `json:"eligible"`
	Reasons         []string        `json:"reasons,omitempty"`
	DiscountedTotal decimal.Decimal `json:"discounted_total"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Percentage      decimal.Decimal `json:"percentage"`
	Deadline        *time.Time      `json:"deadline,omitempty"`
}

// Evaluate checks every global discount rule and reports all that fail.
func Evaluate(in EligibilityInput, setting DiscountSetting) Eligibility {
	out := Eligibility{
		DiscountAmount:  DiscountAmount(in.TotalRemaining, setting),
		DiscountedTotal: DiscountedTotal(in.TotalRemaining, setting),
		Percentage:      setting.Percentage,
	}
	if !setting.Deadline.IsZero() {
		deadline := setting.Deadline
		out.Deadline = &deadline
	}

	if !setting.Enabled() {
		out.Reasons = append(out.Reasons, ReasonDiscountDisabled)
	}
	if in.HasScholarship {
		out.Reasons = append(out.Reasons, ReasonHasScholarship)
	}
	if in.HasExistingPayments {
		out.Reasons = append(out.Reasons, ReasonHasExistingPayments)
	}
	if setting.Enabled() && !SameDayOrBefore(in.PaymentDate, setting.Deadline) {
		out.Reasons = append(out.Reasons, ReasonDeadlinePassed)
	}
	if !in.TotalRemaining.IsPositive() {
		out.Reasons = append(out.Reasons, ReasonNothingOwed)
	} else if in.ProposedAmount != nil && !in.ProposedAmount.Equal(out.DiscountedTotal) {
		out.Reasons = append(out.Reasons, ReasonAmountMismatch)
	}

	out.Eligible = len(out.Reasons) == 0
	return out
}

func IsEligible(in EligibilityInput, setting DiscountSetting) bool {
	return Evaluate(in, setting).Eligible
}
