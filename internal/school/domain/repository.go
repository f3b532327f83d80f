package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository reads school reference data. Every method takes the handle to
// run on so callers can pass an open transaction.
type Repository interface {
	FindStudent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Student, error)
	// LockStudent takes a row lock on the student, serialising ledger writes per student.
	LockStudent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Student, error)
	FindYear(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SchoolYear, error)
	FindCurrentYear(ctx context.Context, db *gorm.DB) (*SchoolYear, error)
}
