package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	tranchedomain "github.com/smallbiznis/feeledger/internal/tranche/domain"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() tranchedomain.Repository {
	return &repository{}
}

func (r *repository) ListByClass(ctx context.Context, db *gorm.DB, classID snowflake.ID) ([]tranchedomain.Tranche, error) {
	var items []tranchedomain.Tranche
	err := db.WithContext(ctx).Raw(
		`SELECT id, class_id, name, tranche_order, amount, deadline, created_at
		 FROM payment_tranches
		 WHERE class_id = ?
		 ORDER BY tranche_order ASC, id ASC`,
		classID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindActiveScholarship(ctx context.Context, db *gorm.DB, classID snowflake.ID) (*tranchedomain.Scholarship, error) {
	var item tranchedomain.Scholarship
	err := db.WithContext(ctx).Raw(
		`SELECT id, class_id, tranche_id, name, amount, is_active, created_at
		 FROM class_scholarships
		 WHERE class_id = ? AND is_active = true
		 ORDER BY id DESC
		 LIMIT 1`,
		classID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
