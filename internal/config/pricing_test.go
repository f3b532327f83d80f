package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePricingConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*PricingConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*PricingConfig) {}},
		{name: "discount with deadline", mutate: func(c *PricingConfig) {
			c.Discount = DiscountConfig{Percentage: 5, Deadline: "2025-10-31"}
		}},
		{name: "negative percentage", wantErr: true, mutate: func(c *PricingConfig) {
			c.Discount.Percentage = -1
		}},
		{name: "percentage over 100", wantErr: true, mutate: func(c *PricingConfig) {
			c.Discount = DiscountConfig{Percentage: 120, Deadline: "2025-10-31"}
		}},
		{name: "percentage without deadline", wantErr: true, mutate: func(c *PricingConfig) {
			c.Discount.Percentage = 5
		}},
		{name: "malformed deadline", wantErr: true, mutate: func(c *PricingConfig) {
			c.Discount = DiscountConfig{Percentage: 5, Deadline: "31/10/2025"}
		}},
		{name: "template without sequence", wantErr: true, mutate: func(c *PricingConfig) {
			c.Receipt.Template = "REC-{YYYY}"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultPricingConfig()
			tc.mutate(&cfg)
			err := ValidatePricingConfig(cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDiscountDeadlineDate(t *testing.T) {
	d, err := DiscountConfig{Deadline: "2025-10-31"}.DeadlineDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC), d)

	d, err = DiscountConfig{}.DeadlineDate()
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}

func TestStaticHolderReturnsStoredConfig(t *testing.T) {
	cfg := DefaultPricingConfig()
	cfg.Discount = DiscountConfig{Percentage: 5, Deadline: "2025-10-31"}
	holder := NewStaticPricingConfigHolder(cfg)
	assert.Equal(t, cfg, holder.Get())
}
