package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, studentID, schoolYearID snowflake.ID) (*Status, error)
	// Ensure inserts the NOT_BROUGHT row unless one exists.
	Ensure(ctx context.Context, db *gorm.DB, status *Status) error
	// MarkBrought flips the flag only while it is still false and reports
	// whether a row changed.
	MarkBrought(ctx context.Context, db *gorm.DB, req MarkRequest, at time.Time) (bool, error)
}

type Service interface {
	Get(ctx context.Context, studentID, schoolYearID snowflake.ID) (*Status, error)
	MarkAsBrought(ctx context.Context, req MarkRequest) (*Status, error)
	// MarkInTx marks inside a transaction owned by the caller.
	MarkInTx(ctx context.Context, tx *gorm.DB, req MarkRequest) (*Status, error)
}

type MarkRequest struct {
	StudentID    snowflake.ID
	SchoolYearID snowflake.ID
	MarkedBy     string
	Notes        string
	DepositDate  *time.Time
	Source       string
	PaymentID    *snowflake.ID
}
