package allocation

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/pricing"
	tranchedomain "github.com/smallbiznis/feeledger/internal/tranche/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func schedule() tranchedomain.Schedule {
	return tranchedomain.Schedule{
		ClassID: 1,
		Tranches: []tranchedomain.Tranche{
			{ID: 1, Name: "T1", Order: 1, Amount: d(100000)},
			{ID: 2, Name: "T2", Order: 2, Amount: d(150000)},
		},
	}
}

func TestAllocateNormalFillsFirstTranche(t *testing.T) {
	resolver := pricing.NewResolver(schedule(), pricing.DiscountSetting{})
	lines := LinesFrom(resolver.Schedule(pricing.FlagsScholarship, false), nil)

	result, err := Allocate(Request{Type: PaymentTypeNormal, Amount: d(100000), Lines: lines})
	require.NoError(t, err)
	require.Len(t, result.Details, 1)

	t1 := result.Details[0]
	assert.EqualValues(t, 1, t1.TrancheID)
	assert.True(t, t1.AmountAllocated.Equal(d(100000)))
	assert.True(t, t1.PreviousAmount.IsZero())
	assert.True(t, t1.NewTotalAmount.Equal(d(100000)))
	assert.True(t, t1.IsFullyPaid)
	assert.False(t, t1.WasReduced)
	assert.True(t, result.Remainder.IsZero())
}

func TestAllocateGlobalDiscountBackLoaded(t *testing.T) {
	setting := pricing.DiscountSetting{Percentage: d(5), Deadline: time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC)}
	resolver := pricing.NewResolver(schedule(), setting)
	lines := LinesFrom(resolver.Schedule(pricing.FlagsAll, true), nil)

	result, err := Allocate(Request{Type: PaymentTypeGlobalDiscount, Amount: d(237500), Lines: lines})
	require.NoError(t, err)
	require.Len(t, result.Details, 2)

	t1, t2 := result.Details[0], result.Details[1]
	assert.True(t, t1.AmountAllocated.Equal(d(100000)))
	assert.True(t, t1.RequiredAmountAtTime.Equal(d(100000)))
	assert.True(t, t1.IsFullyPaid)
	assert.False(t, t1.WasReduced)

	assert.True(t, t2.AmountAllocated.Equal(d(137500)))
	assert.True(t, t2.RequiredAmountAtTime.Equal(d(137500)))
	assert.True(t, t2.IsFullyPaid)
	assert.True(t, t2.WasReduced)

	assert.True(t, result.Allocated.Equal(d(237500)))
}

func TestAllocateSkipsSettledAndContinuesPartialTranche(t *testing.T) {
	paid := map[snowflake.ID]decimal.Decimal{1: d(100000), 2: d(50000)}
	resolver := pricing.NewResolver(schedule(), pricing.DiscountSetting{})
	lines := LinesFrom(resolver.Schedule(pricing.FlagsNone, false), paid)

	result, err := Allocate(Request{Type: PaymentTypeNormal, Amount: d(60000), Lines: lines})
	require.NoError(t, err)
	require.Len(t, result.Details, 1)

	t2 := result.Details[0]
	assert.EqualValues(t, 2, t2.TrancheID)
	assert.True(t, t2.PreviousAmount.Equal(d(50000)))
	assert.True(t, t2.NewTotalAmount.Equal(d(110000)))
	assert.False(t, t2.IsFullyPaid)
}

func TestAllocateSkipsZeroRequiredTranche(t *testing.T) {
	sched := schedule()
	sched.Scholarship = &tranchedomain.Scholarship{ID: 9, TrancheID: 1, Amount: d(100000), IsActive: true}
	resolver := pricing.NewResolver(sched, pricing.DiscountSetting{})
	lines := LinesFrom(resolver.Schedule(pricing.FlagsScholarship, false), nil)

	result, err := Allocate(Request{Type: PaymentTypeScholarship, Amount: d(150000), Lines: lines})
	require.NoError(t, err)
	require.Len(t, result.Details, 1)
	assert.EqualValues(t, 2, result.Details[0].TrancheID)
}

func TestAllocateRejectsOverpayment(t *testing.T) {
	lines := []Line{{TrancheID: 1, Order: 1, Required: d(100000), PreviouslyPaid: d(50000)}}

	_, err := Allocate(Request{Type: PaymentTypeNormal, Amount: d(60000), Lines: lines})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientRemainingBalance))

	var balanceErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balanceErr)
	assert.True(t, balanceErr.Remaining.Equal(d(50000)))
}

func TestAllocateRejectsBadInput(t *testing.T) {
	lines := []Line{{TrancheID: 1, Order: 1, Required: d(10)}}

	_, err := Allocate(Request{Type: PaymentTypeNormal, Amount: d(0), Lines: lines})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Allocate(Request{Type: "mixed", Amount: d(5), Lines: lines})
	assert.ErrorIs(t, err, ErrUnknownPaymentType)

	dup := []Line{{TrancheID: 1, Order: 1, Required: d(10)}, {TrancheID: 2, Order: 1, Required: d(10)}}
	_, err = Allocate(Request{Type: PaymentTypeNormal, Amount: d(5), Lines: dup})
	assert.ErrorIs(t, err, ErrTrancheOrderConflict)
}

func TestAllocateConservesAmountAndSnapshots(t *testing.T) {
	lines := []Line{
		{TrancheID: 3, Order: 3, Required: d(70)},
		{TrancheID: 1, Order: 1, Required: d(40), PreviouslyPaid: d(15)},
		{TrancheID: 2, Order: 2, Required: d(0)},
	}
	for _, amount := range []int64{1, 25, 26, 60, 95} {
		result, err := Allocate(Request{Type: PaymentTypeNormal, Amount: d(amount), Lines: lines})
		require.NoError(t, err)

		sum := decimal.Zero
		prevOrder := 0
		for _, detail := range result.Details {
			assert.False(t, detail.AmountAllocated.IsNegative())
			assert.True(t, detail.NewTotalAmount.Equal(detail.PreviousAmount.Add(detail.AmountAllocated)))
			assert.True(t, detail.NewTotalAmount.LessThanOrEqual(detail.RequiredAmountAtTime), "no tranche overpay")
			assert.Greater(t, detail.Order, prevOrder)
			prevOrder = detail.Order
			sum = sum.Add(detail.AmountAllocated)
		}
		assert.True(t, sum.Equal(d(amount)))
		assert.True(t, result.Remainder.IsZero())
	}
}

func TestDecideType(t *testing.T) {
	typ, err := DecideType(false, false)
	require.NoError(t, err)
	assert.Equal(t, PaymentTypeNormal, typ)

	typ, err = DecideType(true, false)
	require.NoError(t, err)
	assert.Equal(t, PaymentTypeScholarship, typ)

	typ, err = DecideType(false, true)
	require.NoError(t, err)
	assert.Equal(t, PaymentTypeGlobalDiscount, typ)

	_, err = DecideType(true, true)
	assert.ErrorIs(t, err, ErrScholarshipDiscountConflict)
}
