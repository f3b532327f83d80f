package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(v int64) *decimal.Decimal {
	x := decimal.NewFromInt(v)
	return &x
}

func TestEvaluate(t *testing.T) {
	setting := fivePercent()
	onDeadline := time.Date(2025, 10, 31, 17, 45, 0, 0, time.UTC)

	cases := []struct {
		name     string
		in       EligibilityInput
		setting  DiscountSetting
		eligible bool
		reasons  []string
	}{
		{
			name:     "full settlement on deadline day",
			in:       EligibilityInput{ProposedAmount: amount(237500), TotalRemaining: d(250000), PaymentDate: onDeadline},
			setting:  setting,
			eligible: true,
		},
		{
			name:     "status check without amount",
			in:       EligibilityInput{TotalRemaining: d(250000), PaymentDate: onDeadline.AddDate(0, -1, 0)},
			setting:  setting,
			eligible: true,
		},
		{
			name:    "partial amount",
			in:      EligibilityInput{ProposedAmount: amount(100000), TotalRemaining: d(250000), PaymentDate: onDeadline},
			setting: setting,
			reasons: []string{ReasonAmountMismatch},
		},
		{
			name:    "day after deadline",
			in:      EligibilityInput{ProposedAmount: amount(237500), TotalRemaining: d(250000), PaymentDate: onDeadline.Add(8 * time.Hour)},
			setting: setting,
			reasons: []string{ReasonDeadlinePassed},
		},
		{
			name:    "scholarship and prior payments",
			in:      EligibilityInput{HasScholarship: true, HasExistingPayments: true, ProposedAmount: amount(237500), TotalRemaining: d(250000), PaymentDate: onDeadline},
			setting: setting,
			reasons: []string{ReasonHasScholarship, ReasonHasExistingPayments},
		},
		{
			name:    "discount disabled",
			in:      EligibilityInput{TotalRemaining: d(250000), PaymentDate: onDeadline},
			setting: DiscountSetting{},
			reasons: []string{ReasonDiscountDisabled},
		},
		{
			name:    "nothing owed",
			in:      EligibilityInput{ProposedAmount: amount(0), TotalRemaining: d(0), PaymentDate: onDeadline},
			setting: setting,
			reasons: []string{ReasonNothingOwed},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.in, tc.setting)
			assert.Equal(t, tc.eligible, got.Eligible)
			assert.Equal(t, tc.reasons, got.Reasons)
			assert.Equal(t, tc.eligible, IsEligible(tc.in, tc.setting))
		})
	}
}

func TestEvaluateReportsDiscountedTotal(t *testing.T) {
	got := Evaluate(EligibilityInput{TotalRemaining: d(250000), PaymentDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)}, fivePercent())
	assert.True(t, got.DiscountAmount.Equal(d(12500)))
	assert.True(t, got.DiscountedTotal.Equal(d(237500)))
	require.NotNil(t, got.Deadline)
}

func TestSettingFromConfig(t *testing.T) {
	setting, err := SettingFromConfig(config.DiscountConfig{Percentage: 5, Deadline: "2025-10-31"})
	require.NoError(t, err)
	assert.True(t, setting.Enabled())
	assert.True(t, setting.Rate().Equal(decimal.RequireFromString("0.05")))

	_, err = SettingFromConfig(config.DiscountConfig{Percentage: 5, Deadline: "bad"})
	assert.Error(t, err)
}

func TestDiscountAmountRounding(t *testing.T) {
	got := DiscountAmount(decimal.RequireFromString("333.33"), DiscountSetting{Percentage: d(5)})
	assert.Equal(t, "16.67", got.StringFixed(2))
}
