package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/allocation"
	paymentdomain "github.com/smallbiznis/feeledger/internal/payment/domain"
	"github.com/smallbiznis/feeledger/internal/paymentstatus"
	"github.com/smallbiznis/feeledger/internal/pricing"
	tranchedomain "github.com/smallbiznis/feeledger/internal/tranche/domain"
	"gorm.io/gorm"
)

// ledgerState is everything recorded for one student and school year.
type ledgerState struct {
	schedule tranchedomain.Schedule
	events   []paymentstatus.Event
	payments []paymentdomain.Payment
}

func (s *Service) loadLedger(ctx context.Context, tx *gorm.DB, studentID, schoolYearID, classID snowflake.ID) (ledgerState, error) {
	schedule, err := s.catalog.WithTx(tx).Schedule(ctx, classID)
	if err != nil {
		return ledgerState{}, err
	}
	events, err := s.repo.ListEvents(ctx, tx, studentID, schoolYearID)
	if err != nil {
		return ledgerState{}, err
	}
	payments, err := s.repo.ListByStudent(ctx, tx, studentID, schoolYearID)
	if err != nil {
		return ledgerState{}, err
	}
	return ledgerState{schedule: schedule, events: events, payments: payments}, nil
}

// recordedReduction returns the discount granted by an earlier payment.
// Once granted it is fixed, whatever the current discount settings say.
func (l ledgerState) recordedReduction(cutoff *paymentstatus.Cutoff) (decimal.Decimal, bool) {
	total := decimal.Zero
	found := false
	for _, p := range l.payments {
		if !p.HasReduction || !cutoff.Covers(p.ID, p.CreatedAt) {
			continue
		}
		total = total.Add(p.ReductionAmount)
		found = true
	}
	return total, found
}

func (l ledgerState) resolver(setting pricing.DiscountSetting, cutoff *paymentstatus.Cutoff) (*pricing.Resolver, bool) {
	if budget, ok := l.recordedReduction(cutoff); ok {
		return pricing.NewResolverWithBudget(l.schedule, budget), true
	}
	return pricing.NewResolver(l.schedule, setting), false
}

type allocationPlan struct {
	requirements []pricing.Requirement
	reduction    decimal.Decimal
}

// scholarshipOn sums the scholarship carried by the tranches a payment
// actually allocated to. Untouched tranches keep theirs for later receipts.
func (p allocationPlan) scholarshipOn(details []allocation.Detail) decimal.Decimal {
	touched := make(map[snowflake.ID]bool, len(details))
	for _, d := range details {
		touched[d.TrancheID] = true
	}
	total := decimal.Zero
	for _, r := range p.requirements {
		if r.Reason == pricing.ReductionScholarship && touched[r.TrancheID] {
			total = total.Add(r.ReductionApplied)
		}
	}
	return total
}

func planAllocation(state ledgerState, setting pricing.DiscountSetting, paymentType allocation.PaymentType, req paymentdomain.CreateRequest) (allocationPlan, error) {
	resolver, reduced := state.resolver(setting, nil)
	plan := allocationPlan{reduction: decimal.Zero}

	switch paymentType {
	case allocation.PaymentTypeGlobalDiscount:
		paid := paymentstatus.PaidByTranche(state.events, nil)
		remaining := allocation.TotalOwed(allocation.LinesFrom(resolver.Schedule(pricing.FlagsNone, false), paid))
		amount := req.Amount
		eligibility := pricing.Evaluate(pricing.EligibilityInput{
			HasScholarship:      state.schedule.HasScholarship(),
			HasExistingPayments: paymentstatus.HasPayments(state.events, nil),
			ProposedAmount:      &amount,
			TotalRemaining:      remaining,
			PaymentDate:         req.PaymentDate,
		}, setting)
		if !eligibility.Eligible {
			return allocationPlan{}, &paymentdomain.DiscountIneligibleError{Reasons: eligibility.Reasons}
		}
		plan.requirements = resolver.Schedule(pricing.FlagsAll, true)
		plan.reduction = resolver.DiscountBudget()
	case allocation.PaymentTypeScholarship:
		plan.requirements = resolver.Schedule(pricing.FlagsScholarship, false)
	default:
		if reduced {
			plan.requirements = resolver.Schedule(pricing.FlagsAll, true)
		} else {
			plan.requirements = resolver.Schedule(pricing.FlagsNone, false)
		}
	}
	return plan, nil
}

// statusOf evaluates discount eligibility for display and folds the events
// against the schedule the student currently owes.
func statusOf(state ledgerState, setting pricing.DiscountSetting, flags pricing.Flags, cutoff *paymentstatus.Cutoff, at time.Time) paymentstatus.Status {
	resolver, reduced := state.resolver(setting, cutoff)
	paid := paymentstatus.PaidByTranche(state.events, cutoff)
	eligibility := pricing.Evaluate(pricing.EligibilityInput{
		HasScholarship:      state.schedule.HasScholarship(),
		HasExistingPayments: paymentstatus.HasPayments(state.events, cutoff),
		TotalRemaining:      allocation.TotalOwed(allocation.LinesFrom(resolver.Schedule(pricing.FlagsNone, false), paid)),
		PaymentDate:         at,
	}, setting)

	status := paymentstatus.Aggregate(paymentstatus.Input{
		Requirements: resolver.Schedule(flags, eligibility.Eligible || reduced),
		Events:       state.events,
		Cutoff:       cutoff,
		UseSnapshots: cutoff != nil,
	})
	status.Discount = &eligibility
	return status
}
