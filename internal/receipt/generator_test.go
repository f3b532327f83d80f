package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/feeledger/internal/config"
	"github.com/smallbiznis/feeledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type paymentRow struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	SchoolYearID  snowflake.ID
	ReceiptNumber string
}

func (paymentRow) TableName() string { return "payments" }

func newTestGenerator(template string) Generator {
	cfg := config.DefaultPricingConfig()
	if template != "" {
		cfg.Receipt.Template = template
	}
	return NewGenerator(Params{Log: zap.NewNop(), Pricing: config.NewStaticPricingConfigHolder(cfg)})
}

func TestNextIsMonotonicPerYear(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t, &Sequence{}, &paymentRow{})
	gen := newTestGenerator("")
	issued := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	var numbers []string
	for i := 0; i < 3; i++ {
		err := conn.Transaction(func(tx *gorm.DB) error {
			n, err := gen.Next(ctx, tx, Request{SchoolYearID: 1, IssuedAt: issued})
			numbers = append(numbers, n)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"REC-20250101-000001", "REC-20250101-000002", "REC-20250101-000003"}, numbers)

	other, err := gen.Next(ctx, conn, Request{SchoolYearID: 2, IssuedAt: issued, Penalty: true})
	require.NoError(t, err)
	assert.Equal(t, "REC-P-20250101-000001", other)
}

func TestNextSkipsNumbersAlreadyTaken(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t, &Sequence{}, &paymentRow{})
	require.NoError(t, conn.Create(&paymentRow{ID: 1, SchoolYearID: 1, ReceiptNumber: "2526-0001"}).Error)

	gen := newTestGenerator("{YEAR}-{SEQ4}")
	n, err := gen.Next(ctx, conn, Request{SchoolYearID: 1, YearCode: "2526", IssuedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "2526-0002", n)
}

func TestRolledBackNumberIsReissued(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t, &Sequence{}, &paymentRow{})
	gen := newTestGenerator("")
	issued := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		_, err := gen.Next(ctx, tx, Request{SchoolYearID: 1, IssuedAt: issued})
		require.NoError(t, err)
		return assert.AnError
	})

	n, err := gen.Next(ctx, conn, Request{SchoolYearID: 1, IssuedAt: issued})
	require.NoError(t, err)
	assert.Equal(t, "REC-20250101-000001", n)
}
