// Package paymentstatus rebuilds a student's per-tranche position from the
// append-only list of allocation events, optionally as of a past payment.
package paymentstatus

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/pricing"
)

// Event is one committed allocation line joined with its payment header.
type Event struct {
	PaymentID      snowflake.ID
	TrancheID      snowflake.ID
	Amount         decimal.Decimal
	RequiredAtTime decimal.Decimal
	CreatedAt      time.Time
	IsRamePhysical bool
}

// Cutoff bounds a replay to the state right after PaymentID was committed.
// Events at the same instant are ordered by payment id.
type Cutoff struct {
	At        time.Time
	PaymentID snowflake.ID
}

// Covers reports whether a payment committed at createdAt falls inside the cutoff.
// A nil cutoff covers everything.
func (c *Cutoff) Covers(paymentID snowflake.ID, createdAt time.Time) bool {
	if c == nil {
		return true
	}
	if createdAt.Before(c.At) {
		return true
	}
	return createdAt.Equal(c.At) && paymentID <= c.PaymentID
}

func (c *Cutoff) includes(e Event) bool {
	return c.Covers(e.PaymentID, e.CreatedAt)
}

type TrancheStatus struct {
	TrancheID snowflake.ID    `json:"tranche_id"`
	Name      string          `json:"name"`
	Order     int             `json:"order"`
	Normal    decimal.Decimal `json:"normal_amount"`
	Required  decimal.Decimal `json:"required"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
	FullyPaid bool            `json:"fully_paid"`
	Reduction decimal.Decimal `json:"reduction"`
}

type Totals struct {
	Required  decimal.Decimal `json:"required"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

type Status struct {
	PerTranche          []TrancheStatus      `json:"per_tranche"`
	Totals              Totals               `json:"totals"`
	HasExistingPayments bool                 `json:"has_existing_payments"`
	Discount            *pricing.Eligibility `json:"discount,omitempty"`
	AsOf                *Cutoff              `json:"as_of,omitempty"`
}

type Input struct {
	Requirements []pricing.Requirement
	Events       []Event
	Cutoff       *Cutoff
	// UseSnapshots replaces a tranche's required amount with the one recorded
	// on its latest visible event, so old receipts survive catalog edits.
	UseSnapshots bool
}

// Visible returns the tuition events inside the cutoff, oldest first.
// RAME physical deliveries carry no money and are dropped.
func Visible(events []Event, cutoff *Cutoff) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.IsRamePhysical || !cutoff.includes(e) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].PaymentID < out[j].PaymentID
	})
	return out
}

// PaidByTranche sums allocated amounts per tranche within the cutoff.
func PaidByTranche(events []Event, cutoff *Cutoff) map[snowflake.ID]decimal.Decimal {
	paid := make(map[snowflake.ID]decimal.Decimal)
	for _, e := range Visible(events, cutoff) {
		paid[e.TrancheID] = paid[e.TrancheID].Add(e.Amount)
	}
	return paid
}

// HasPayments reports whether any tuition payment falls inside the cutoff.
func HasPayments(events []Event, cutoff *Cutoff) bool {
	return len(Visible(events, cutoff)) > 0
}

// Snapshots returns the required amount recorded by the latest visible event of each tranche.
func Snapshots(events []Event, cutoff *Cutoff) map[snowflake.ID]decimal.Decimal {
	out := make(map[snowflake.ID]decimal.Decimal)
	for _, e := range Visible(events, cutoff) {
		out[e.TrancheID] = e.RequiredAtTime
	}
	return out
}

// Aggregate is a pure fold over the events; it never touches storage.
func Aggregate(in Input) Status {
	paid := PaidByTranche(in.Events, in.Cutoff)

	reqs := append([]pricing.Requirement(nil), in.Requirements...)
	if in.UseSnapshots {
		snapshots := Snapshots(in.Events, in.Cutoff)
		for i := range reqs {
			if required, ok := snapshots[reqs[i].TrancheID]; ok {
				reqs[i].ReductionApplied = reqs[i].Normal.Sub(required)
				reqs[i].Required = required
			}
		}
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].Order < reqs[j].Order })

	status := Status{
		PerTranche: make([]TrancheStatus, 0, len(reqs)),
		Totals: Totals{
			Required:  decimal.Zero,
			Paid:      decimal.Zero,
			Remaining: decimal.Zero,
		},
		HasExistingPayments: HasPayments(in.Events, in.Cutoff),
		AsOf:                in.Cutoff,
	}

	for _, req := range reqs {
		p := paid[req.TrancheID]
		remaining := req.Required.Sub(p)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		status.PerTranche = append(status.PerTranche, TrancheStatus{
			TrancheID: req.TrancheID,
			Name:      req.Name,
			Order:     req.Order,
			Normal:    req.Normal,
			Required:  req.Required,
			Paid:      p,
			Remaining: remaining,
			FullyPaid: !remaining.IsPositive(),
			Reduction: req.ReductionApplied,
		})
		status.Totals.Required = status.Totals.Required.Add(req.Required)
		status.Totals.Paid = status.Totals.Paid.Add(p)
		status.Totals.Remaining = status.Totals.Remaining.Add(remaining)
	}
	return status
}
