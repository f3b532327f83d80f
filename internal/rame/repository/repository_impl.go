package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ramedomain "github.com/smallbiznis/feeledger/internal/rame/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct{}

func NewRepository() ramedomain.Repository {
	return &repository{}
}

func (r *repository) Find(ctx context.Context, db *gorm.DB, studentID, schoolYearID snowflake.ID) (*ramedomain.Status, error) {
	var item ramedomain.Status
	err := db.WithContext(ctx).Raw(
		`SELECT id, student_id, school_year_id, has_brought_rame, marked_date, deposit_date,
			marked_by, notes, source, payment_id, created_at, updated_at
		 FROM rame_statuses
		 WHERE student_id = ? AND school_year_id = ?
		 LIMIT 1`,
		studentID,
		schoolYearID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// Ensure goes through the clause builder so the conflict syntax matches the dialect.
func (r *repository) Ensure(ctx context.Context, db *gorm.DB, status *ramedomain.Status) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "school_year_id"}},
			DoNothing: true,
		}).
		Create(status).Error
}

func (r *repository) MarkBrought(ctx context.Context, db *gorm.DB, req ramedomain.MarkRequest, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE rame_statuses
		 SET has_brought_rame = true, marked_date = ?, deposit_date = ?, marked_by = ?,
			notes = ?, source = ?, payment_id = ?, updated_at = ?
		 WHERE student_id = ? AND school_year_id = ? AND has_brought_rame = false`,
		at,
		req.DepositDate,
		req.MarkedBy,
		req.Notes,
		req.Source,
		req.PaymentID,
		at,
		req.StudentID,
		req.SchoolYearID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
