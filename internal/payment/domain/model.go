package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Payment is the immutable header of one collection. TotalAmount always
// equals the sum of its details' AmountAllocated.
type Payment struct {
	ID                snowflake.ID    `json:"id" gorm:"primaryKey"`
	SchoolYearID      snowflake.ID    `json:"school_year_id" gorm:"column:school_year_id;not null;uniqueIndex:ux_payment_year_receipt"`
	StudentID         snowflake.ID    `json:"student_id" gorm:"column:student_id;not null;index"`
	ClassID           snowflake.ID    `json:"class_id" gorm:"column:class_id;not null"`
	ReceiptNumber     string          `json:"receipt_number" gorm:"column:receipt_number;type:text;not null;uniqueIndex:ux_payment_year_receipt"`
	PaymentType       string          `json:"payment_type" gorm:"column:payment_type;type:text;not null"`
	TotalAmount       decimal.Decimal `json:"total_amount" gorm:"type:numeric(14,2);not null"`
	PaymentMethod     string          `json:"payment_method" gorm:"type:text;not null"`
	PaymentDate       time.Time       `json:"payment_date" gorm:"not null"`
	VersementDate     *time.Time      `json:"versement_date,omitempty"`
	ValidationDate    *time.Time      `json:"validation_date,omitempty"`
	HasReduction      bool            `json:"has_reduction" gorm:"not null;default:false"`
	ReductionAmount   decimal.Decimal `json:"reduction_amount" gorm:"type:numeric(14,2);not null;default:0"`
	HasScholarship    bool            `json:"has_scholarship" gorm:"not null;default:false"`
	ScholarshipAmount decimal.Decimal `json:"scholarship_amount" gorm:"type:numeric(14,2);not null;default:0"`
	IsRamePhysical    bool            `json:"is_rame_physical" gorm:"column:is_rame_physical;not null;default:false"`
	IsPenalty         bool            `json:"is_penalty" gorm:"not null;default:false"`
	Notes             string          `json:"notes,omitempty" gorm:"type:text;not null;default:''"`
	RecordedBy        string          `json:"recorded_by,omitempty" gorm:"type:text;not null;default:''"`
	CreatedAt         time.Time       `json:"created_at" gorm:"not null"`

	Details []PaymentDetail `json:"details" gorm:"-"`
}

func (Payment) TableName() string { return "payments" }

// PaymentDetail is one tranche touched by a payment. Written once by the
// allocator and never updated.
type PaymentDetail struct {
	ID                   snowflake.ID    `json:"id" gorm:"primaryKey"`
	PaymentID            snowflake.ID    `json:"payment_id" gorm:"column:payment_id;not null;index"`
	StudentID            snowflake.ID    `json:"student_id" gorm:"column:student_id;not null;index"`
	TrancheID            snowflake.ID    `json:"tranche_id" gorm:"column:tranche_id;not null"`
	AmountAllocated      decimal.Decimal `json:"amount_allocated" gorm:"type:numeric(14,2);not null"`
	PreviousAmount       decimal.Decimal `json:"previous_amount" gorm:"type:numeric(14,2);not null"`
	NewTotalAmount       decimal.Decimal `json:"new_total_amount" gorm:"type:numeric(14,2);not null"`
	IsFullyPaid          bool            `json:"is_fully_paid" gorm:"not null;default:false"`
	RequiredAmountAtTime decimal.Decimal `json:"required_amount_at_time" gorm:"type:numeric(14,2);not null"`
	WasReduced           bool            `json:"was_reduced" gorm:"not null;default:false"`
	CreatedAt            time.Time       `json:"created_at" gorm:"not null"`
}

func (PaymentDetail) TableName() string { return "payment_details" }

const (
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
	MethodMobileMoney  = "mobile_money"
	MethodCheque       = "cheque"
)
