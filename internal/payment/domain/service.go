package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/paymentstatus"
	"github.com/smallbiznis/feeledger/internal/pricing"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert writes the header and all details on tx.
	Insert(ctx context.Context, tx *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	ListByStudent(ctx context.Context, db *gorm.DB, studentID, schoolYearID snowflake.ID) ([]Payment, error)
	ListDetails(ctx context.Context, db *gorm.DB, paymentIDs []snowflake.ID) ([]PaymentDetail, error)
	// ListEvents returns the student's allocation lines joined with their headers, oldest first.
	ListEvents(ctx context.Context, db *gorm.DB, studentID, schoolYearID snowflake.ID) ([]paymentstatus.Event, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Payment, error)
	Get(ctx context.Context, id snowflake.ID) (*Payment, error)
	ListByStudent(ctx context.Context, studentID, schoolYearID snowflake.ID) ([]Payment, error)
	StatusFor(ctx context.Context, req StatusRequest) (*paymentstatus.Status, error)
	StatusAsOf(ctx context.Context, paymentID snowflake.ID) (*paymentstatus.Status, error)
}

type CreateRequest struct {
	StudentID           snowflake.ID    `json:"student_id" validate:"required"`
	Amount              decimal.Decimal `json:"amount" validate:"-"`
	PaymentMethod       string          `json:"payment_method" validate:"required,oneof=cash bank_transfer mobile_money cheque"`
	PaymentDate         time.Time       `json:"payment_date" validate:"required"`
	VersementDate       *time.Time      `json:"versement_date,omitempty"`
	ApplyGlobalDiscount bool            `json:"apply_global_discount"`
	IsRamePhysical      bool            `json:"is_rame_physical"`
	IsPenalty           bool            `json:"is_penalty"`
	Notes               string          `json:"notes" validate:"max=500"`
	RecordedBy          string          `json:"recorded_by" validate:"max=120"`
}

type StatusRequest struct {
	StudentID    snowflake.ID
	SchoolYearID snowflake.ID
	// Flags defaults to every reduction the student may get.
	Flags *pricing.Flags
}
