package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type State string

const (
	StateNotBrought State = "NOT_BROUGHT"
	StateBrought    State = "BROUGHT"
)

// Transition applies the only allowed move, NOT_BROUGHT to BROUGHT.
func (s State) Transition(to State) (State, error) {
	switch {
	case s == StateNotBrought && to == StateBrought:
		return StateBrought, nil
	case s == StateBrought:
		return s, ErrAlreadyMarked
	default:
		return s, ErrInvalidTransition
	}
}

const (
	SourceManual  = "manual"
	SourcePayment = "payment"
)

// Status is the per (student, school year) RAME record, created lazily.
type Status struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	StudentID      snowflake.ID  `json:"student_id" gorm:"column:student_id;not null;uniqueIndex:ux_rame_student_year"`
	SchoolYearID   snowflake.ID  `json:"school_year_id" gorm:"column:school_year_id;not null;uniqueIndex:ux_rame_student_year"`
	HasBroughtRame bool          `json:"has_brought_rame" gorm:"column:has_brought_rame;not null;default:false"`
	MarkedDate     *time.Time    `json:"marked_date,omitempty"`
	DepositDate    *time.Time    `json:"deposit_date,omitempty"`
	MarkedBy       string        `json:"marked_by,omitempty" gorm:"type:text;not null;default:''"`
	Notes          string        `json:"notes,omitempty" gorm:"type:text;not null;default:''"`
	Source         string        `json:"source,omitempty" gorm:"type:text;not null;default:''"`
	PaymentID      *snowflake.ID `json:"payment_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time     `json:"updated_at" gorm:"not null"`
}

func (Status) TableName() string { return "rame_statuses" }

func (s Status) State() State {
	if s.HasBroughtRame {
		return StateBrought
	}
	return StateNotBrought
}
