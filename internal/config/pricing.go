package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DateLayout is the layout used for every calendar date in pricing.yml.
const DateLayout = "2006-01-02"

// PricingConfig is the process-wide pricing and receipt setup maintained by
// the administration. It is replaced atomically on reload.
type PricingConfig struct {
	Discount DiscountConfig `mapstructure:"discount"`
	Receipt  ReceiptFormat  `mapstructure:"receipt"`
}

// DiscountConfig is the global early-settlement discount.
// Percentage is expressed in percent (5 means 5%).
type DiscountConfig struct {
	Percentage float64 `mapstructure:"percentage"`
	Deadline   string  `mapstructure:"deadline"`
}

type ReceiptFormat struct {
	Template      string `mapstructure:"template"`
	PenaltyMarker string `mapstructure:"penaltyMarker"`
}

// DeadlineDate parses the discount deadline. The zero time is returned when
// no deadline is configured.
func (d DiscountConfig) DeadlineDate() (time.Time, error) {
	raw := strings.TrimSpace(d.Deadline)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(DateLayout, raw, time.UTC)
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Discount: DiscountConfig{},
		Receipt: ReceiptFormat{
			Template:      "REC-{PEN}{YYYY}{MM}{DD}-{SEQ6}",
			PenaltyMarker: "P",
		},
	}
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewStaticPricingConfigHolder returns a holder that never reloads.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/feeledger/config")
	v.AddConfigPath("/etc/feeledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FEELEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.discount.percentage", defaults.Discount.Percentage)
	v.SetDefault("pricing.discount.deadline", defaults.Discount.Deadline)
	v.SetDefault("pricing.receipt.template", defaults.Receipt.Template)
	v.SetDefault("pricing.receipt.penaltyMarker", defaults.Receipt.PenaltyMarker)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := ValidatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPricingConfigHolder(cfg)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := ValidatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func ValidatePricingConfig(cfg PricingConfig) error {
	if cfg.Discount.Percentage < 0 || cfg.Discount.Percentage > 100 {
		return errors.New("pricing.discount.percentage must be between 0 and 100")
	}
	if _, err := cfg.Discount.DeadlineDate(); err != nil {
		return errors.New("pricing.discount.deadline must be formatted as YYYY-MM-DD")
	}
	if cfg.Discount.Percentage > 0 && strings.TrimSpace(cfg.Discount.Deadline) == "" {
		return errors.New("pricing.discount.deadline is required when a percentage is set")
	}
	if strings.TrimSpace(cfg.Receipt.Template) == "" {
		return errors.New("pricing.receipt.template cannot be empty")
	}
	if !strings.Contains(cfg.Receipt.Template, "{SEQ") {
		return errors.New("pricing.receipt.template must contain a sequence token")
	}
	return nil
}
