package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListByClass(ctx context.Context, db *gorm.DB, classID snowflake.ID) ([]Tranche, error)
	FindActiveScholarship(ctx context.Context, db *gorm.DB, classID snowflake.ID) (*Scholarship, error)
}

// Catalog is the read-only view of tranches and scholarships.
// A class without tranches yields an empty, valid result.
type Catalog interface {
	Tranches(ctx context.Context, classID snowflake.ID) ([]Tranche, error)
	Scholarship(ctx context.Context, classID snowflake.ID) (*Scholarship, error)
	Schedule(ctx context.Context, classID snowflake.ID) (Schedule, error)
	// WithTx binds the catalog to an open transaction.
	WithTx(tx *gorm.DB) Catalog
}
