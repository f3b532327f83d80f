package receipt

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Sequence is the per school year receipt counter.
type Sequence struct {
	SchoolYearID snowflake.ID `gorm:"column:school_year_id;primaryKey;autoIncrement:false"`
	LastValue    int64        `gorm:"column:last_value;not null;default:0"`
	UpdatedAt    time.Time    `gorm:"not null"`
}

func (Sequence) TableName() string { return "receipt_sequences" }
