package pricing

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	tranchedomain "github.com/smallbiznis/feeledger/internal/tranche/domain"
)

// Flags selects which reductions a required amount may include.
type Flags struct {
	IncludeScholarship bool
	IncludeDiscount    bool
}

var (
	FlagsNone        = Flags{}
	FlagsScholarship = Flags{IncludeScholarship: true}
	FlagsAll         = Flags{IncludeScholarship: true, IncludeDiscount: true}
)

// Requirement is the amount owed on one tranche under a given pricing.
type Requirement struct {
	TrancheID        snowflake.ID
	Name             string
	Order            int
	Normal           decimal.Decimal
	Required         decimal.Decimal
	ReductionApplied decimal.Decimal
	Reason           Reduction
}

type Reduction string

const (
	ReductionNone        Reduction = ""
	ReductionScholarship Reduction = "scholarship"
	ReductionDiscount    Reduction = "global_discount"
)

// BackLoadedSchedule absorbs budget starting from the last tranche by order,
// leaving earlier tranches at their normal amount. tranches must be sorted
// ascending; the result keeps that order.
func BackLoadedSchedule(tranches []tranchedomain.Tranche, budget decimal.Decimal) []Requirement {
	out := make([]Requirement, len(tranches))
	for i, t := range tranches {
		out[i] = Requirement{
			TrancheID:        t.ID,
			Name:             t.Name,
			Order:            t.Order,
			Normal:           nonNegative(t.Amount),
			Required:         nonNegative(t.Amount),
			ReductionApplied: decimal.Zero,
		}
	}

	remaining := nonNegative(budget)
	for i := len(out) - 1; i >= 0 && remaining.IsPositive(); i-- {
		reduceBy := decimal.Min(out[i].Normal, remaining)
		if !reduceBy.IsPositive() {
			continue
		}
		out[i].Required = out[i].Normal.Sub(reduceBy)
		out[i].ReductionApplied = reduceBy
		out[i].Reason = ReductionDiscount
		remaining = remaining.Sub(reduceBy)
	}
	return out
}

// Resolver prices the tranches of one class. The discount is always the
// back-loaded absorption of DiscountAmount(total), so the amount shown to a
// student and the amount allocated at payment time never diverge.
type Resolver struct {
	tranches    []tranchedomain.Tranche
	scholarship *tranchedomain.Scholarship
	budget      decimal.Decimal
	discounted  map[snowflake.ID]Requirement
}

// NewResolver prepares pricing for schedule under setting.
func NewResolver(schedule tranchedomain.Schedule, setting DiscountSetting) *Resolver {
	total := decimal.Zero
	for _, t := range schedule.Tranches {
		total = total.Add(nonNegative(t.Amount))
	}
	return newResolver(schedule, DiscountAmount(total, setting))
}

// NewResolverWithBudget prices the discount with a fixed budget, used to
// replay a reduction already granted on a recorded payment.
func NewResolverWithBudget(schedule tranchedomain.Schedule, budget decimal.Decimal) *Resolver {
	return newResolver(schedule, budget)
}

func newResolver(schedule tranchedomain.Schedule, budget decimal.Decimal) *Resolver {
	tranches := append([]tranchedomain.Tranche(nil), schedule.Tranches...)
	tranchedomain.SortTranches(tranches)

	var scholarship *tranchedomain.Scholarship
	if schedule.HasScholarship() {
		scholarship = schedule.Scholarship
	}

	discounted := make(map[snowflake.ID]Requirement, len(tranches))
	for _, req := range BackLoadedSchedule(tranches, budget) {
		discounted[req.TrancheID] = req
	}

	return &Resolver{
		tranches:    tranches,
		scholarship: scholarship,
		budget:      nonNegative(budget),
		discounted:  discounted,
	}
}

// DiscountBudget is the total the discount removes across the class.
func (r *Resolver) DiscountBudget() decimal.Decimal {
	return r.budget
}

// RequiredAmount returns what the student owes on tranche under flags.
// eligible tells whether the student currently qualifies for the discount.
// The scholarship takes precedence; the two never combine.
func (r *Resolver) RequiredAmount(tranche tranchedomain.Tranche, flags Flags, eligible bool) decimal.Decimal {
	return r.requirement(tranche, flags, eligible).Required
}

// Schedule prices every tranche of the class in ascending order.
func (r *Resolver) Schedule(flags Flags, eligible bool) []Requirement {
	out := make([]Requirement, 0, len(r.tranches))
	for _, t := range r.tranches {
		out = append(out, r.requirement(t, flags, eligible))
	}
	return out
}

// Total sums Required over a priced schedule.
func Total(reqs []Requirement) decimal.Decimal {
	total := decimal.Zero
	for _, req := range reqs {
		total = total.Add(req.Required)
	}
	return total
}

func (r *Resolver) requirement(t tranchedomain.Tranche, flags Flags, eligible bool) Requirement {
	base := nonNegative(t.Amount)
	req := Requirement{
		TrancheID:        t.ID,
		Name:             t.Name,
		Order:            t.Order,
		Normal:           base,
		Required:         base,
		ReductionApplied: decimal.Zero,
	}

	if flags.IncludeScholarship && r.scholarship != nil {
		if r.scholarship.TrancheID == t.ID {
			reduceBy := decimal.Min(base, nonNegative(r.scholarship.Amount))
			req.Required = base.Sub(reduceBy)
			req.ReductionApplied = reduceBy
			req.Reason = ReductionScholarship
		}
		return req
	}

	if flags.IncludeDiscount && eligible {
		if d, ok := r.discounted[t.ID]; ok {
			req.Required = d.Required
			req.ReductionApplied = d.ReductionApplied
			req.Reason = d.Reason
		}
	}
	return req
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
