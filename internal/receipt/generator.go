// Package receipt issues receipt numbers that are unique within a school year.
package receipt

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/feeledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxSkips bounds how many taken numbers Next steps over, e.g. after the
// template changed back to an older format.
const maxSkips = 16

var ErrSequenceExhausted = errors.New("receipt_sequence_exhausted")

type Request struct {
	SchoolYearID snowflake.ID
	YearCode     string
	IssuedAt     time.Time
	Penalty      bool
}

// Generator hands out receipt numbers inside the caller's transaction.
type Generator interface {
	Next(ctx context.Context, tx *gorm.DB, req Request) (string, error)
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Pricing *config.PricingConfigHolder
}

type SequenceGenerator struct {
	log     *zap.Logger
	pricing *config.PricingConfigHolder
}

func NewGenerator(p Params) Generator {
	return &SequenceGenerator{
		log:     p.Log.Named("receipt.generator"),
		pricing: p.Pricing,
	}
}

// Next advances the school year's counter under a row lock and formats the
// result. The counter update holds the lock until the caller commits, so
// concurrent payments in the same year queue behind each other.
func (g *SequenceGenerator) Next(ctx context.Context, tx *gorm.DB, req Request) (string, error) {
	format := g.pricing.Get().Receipt

	for skip := 0; skip < maxSkips; skip++ {
		seq, err := g.advance(ctx, tx, req.SchoolYearID, req.IssuedAt)
		if err != nil {
			return "", err
		}

		entropy := ""
		if strings.Contains(format.Template, "{RAND}") {
			entropy = newEntropy(req.IssuedAt)
		}
		number, err := FormatReceiptNumber(FormatInput{
			Template:      format.Template,
			YearCode:      req.YearCode,
			IssuedAt:      req.IssuedAt,
			Seq:           seq,
			Penalty:       req.Penalty,
			PenaltyMarker: format.PenaltyMarker,
			Entropy:       entropy,
		})
		if err != nil {
			return "", err
		}

		taken, err := g.taken(ctx, tx, req.SchoolYearID, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
		g.log.Warn("receipt number already used, skipping",
			zap.String("school_year_id", req.SchoolYearID.String()),
			zap.String("receipt_number", number),
		)
	}
	return "", fmt.Errorf("%w: school year %s", ErrSequenceExhausted, req.SchoolYearID)
}

func (g *SequenceGenerator) advance(ctx context.Context, tx *gorm.DB, schoolYearID snowflake.ID, now time.Time) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE receipt_sequences
		 SET last_value = last_value + 1, updated_at = ?
		 WHERE school_year_id = ?`,
		now,
		schoolYearID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// First receipt of the year. A concurrent first insert surfaces as a
		// duplicate key and the caller retries the whole transaction.
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO receipt_sequences (school_year_id, last_value, updated_at)
			 VALUES (?, 1, ?)`,
			schoolYearID,
			now,
		).Error; err != nil {
			return 0, err
		}
	}

	var seq int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT last_value FROM receipt_sequences WHERE school_year_id = ?`,
		schoolYearID,
	).Scan(&seq).Error; err != nil {
		return 0, err
	}
	return seq, nil
}

func (g *SequenceGenerator) taken(ctx context.Context, tx *gorm.DB, schoolYearID snowflake.ID, number string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM payments WHERE school_year_id = ? AND receipt_number = ?`,
		schoolYearID,
		number,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func newEntropy(at time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(at), rand.Reader).String()
	return id[len(id)-4:]
}

var Module = fx.Module("receipt",
	fx.Provide(NewGenerator),
)
