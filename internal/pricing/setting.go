package pricing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/config"
)

var hundred = decimal.NewFromInt(100)

// DiscountSetting is the global early-settlement discount. Percentage is in
// percent, so 5 means 5%. It is passed explicitly to every pricing call.
type DiscountSetting struct {
	Percentage decimal.Decimal
	Deadline   time.Time
}

func (d DiscountSetting) Enabled() bool {
	return d.Percentage.IsPositive() && !d.Deadline.IsZero()
}

// Rate is the percentage as a fraction.
func (d DiscountSetting) Rate() decimal.Decimal {
	return d.Percentage.Div(hundred)
}

// SettingFromConfig converts the pricing.yml discount block.
func SettingFromConfig(cfg config.DiscountConfig) (DiscountSetting, error) {
	deadline, err := cfg.DeadlineDate()
	if err != nil {
		return DiscountSetting{}, err
	}
	return DiscountSetting{
		Percentage: decimal.NewFromFloat(cfg.Percentage),
		Deadline:   deadline,
	}, nil
}

// DiscountAmount is round(total * percentage / 100, 2).
func DiscountAmount(total decimal.Decimal, setting DiscountSetting) decimal.Decimal {
	if !total.IsPositive() || !setting.Percentage.IsPositive() {
		return decimal.Zero
	}
	return total.Mul(setting.Percentage).Div(hundred).Round(2)
}

// DiscountedTotal is what a fully eligible payer settles for total.
func DiscountedTotal(total decimal.Decimal, setting DiscountSetting) decimal.Decimal {
	return total.Sub(DiscountAmount(total, setting))
}

// SameDayOrBefore compares calendar dates in UTC, ignoring the time of day.
func SameDayOrBefore(day, deadline time.Time) bool {
	dy, dm, dd := day.UTC().Date()
	ly, lm, ld := deadline.UTC().Date()
	a := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	return !a.After(b)
}
