package paymentstatus

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func requirements() []pricing.Requirement {
	return []pricing.Requirement{
		{TrancheID: 2, Name: "T2", Order: 2, Normal: d(150000), Required: d(150000)},
		{TrancheID: 1, Name: "T1", Order: 1, Normal: d(100000), Required: d(100000)},
	}
}

func TestAggregateHistoricalReplay(t *testing.T) {
	t0 := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{PaymentID: 100, TrancheID: 1, Amount: d(40000), CreatedAt: t0},
		{PaymentID: 200, TrancheID: 1, Amount: d(60000), CreatedAt: t0.Add(24 * time.Hour)},
		{PaymentID: 200, TrancheID: 2, Amount: d(10000), CreatedAt: t0.Add(24 * time.Hour)},
	}

	asOfP1 := Aggregate(Input{Requirements: requirements(), Events: events, Cutoff: &Cutoff{At: t0, PaymentID: 100}})
	require.Len(t, asOfP1.PerTranche, 2)
	assert.EqualValues(t, 1, asOfP1.PerTranche[0].TrancheID)
	assert.True(t, asOfP1.PerTranche[0].Remaining.Equal(d(60000)))
	assert.False(t, asOfP1.PerTranche[0].FullyPaid)
	assert.True(t, asOfP1.PerTranche[1].Paid.IsZero())
	assert.True(t, asOfP1.HasExistingPayments)

	current := Aggregate(Input{Requirements: requirements(), Events: events})
	assert.True(t, current.PerTranche[0].Remaining.IsZero())
	assert.True(t, current.PerTranche[0].FullyPaid)
	assert.True(t, current.Totals.Paid.Equal(d(110000)))
	assert.True(t, current.Totals.Remaining.Equal(d(140000)))
	assert.True(t, current.Totals.Required.Equal(d(250000)))
}

func TestCutoffOrdersSameInstantByPaymentID(t *testing.T) {
	at := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{PaymentID: 5, TrancheID: 1, Amount: d(10), CreatedAt: at},
		{PaymentID: 6, TrancheID: 1, Amount: d(20), CreatedAt: at},
	}
	paid := PaidByTranche(events, &Cutoff{At: at, PaymentID: 5})
	assert.True(t, paid[1].Equal(d(10)))
}

func TestRamePhysicalEventsExcluded(t *testing.T) {
	at := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	events := []Event{{PaymentID: 1, TrancheID: 1, Amount: d(5000), CreatedAt: at, IsRamePhysical: true}}

	status := Aggregate(Input{Requirements: requirements(), Events: events})
	assert.False(t, status.HasExistingPayments)
	assert.True(t, status.Totals.Paid.IsZero())
}

func TestOverpaidTrancheReportsZeroRemaining(t *testing.T) {
	at := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	events := []Event{{PaymentID: 1, TrancheID: 1, Amount: d(120000), CreatedAt: at}}

	status := Aggregate(Input{Requirements: requirements(), Events: events})
	assert.True(t, status.PerTranche[0].Remaining.IsZero())
	assert.True(t, status.Totals.Remaining.Equal(d(150000)))
}

func TestAggregateEmptySchedule(t *testing.T) {
	status := Aggregate(Input{})
	assert.Empty(t, status.PerTranche)
	assert.True(t, status.Totals.Required.IsZero())
	assert.False(t, status.HasExistingPayments)
}

func TestAggregateUsesRecordedRequirements(t *testing.T) {
	t0 := time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{PaymentID: 100, TrancheID: 1, Amount: d(80000), RequiredAtTime: d(80000), CreatedAt: t0},
	}

	// tranche 1 was reduced to 80000 when paid; the catalog now says 100000.
	status := Aggregate(Input{Requirements: requirements(), Events: events, Cutoff: &Cutoff{At: t0, PaymentID: 100}, UseSnapshots: true})
	require.Len(t, status.PerTranche, 2)
	assert.True(t, status.PerTranche[0].Required.Equal(d(80000)))
	assert.True(t, status.PerTranche[0].Reduction.Equal(d(20000)))
	assert.True(t, status.PerTranche[0].FullyPaid)
	assert.True(t, status.PerTranche[1].Required.Equal(d(150000)))

	live := Aggregate(Input{Requirements: requirements(), Events: events})
	assert.True(t, live.PerTranche[0].Remaining.Equal(d(20000)))
}
