package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SchoolYear bounds every monetary fact. Exactly one year is current.
type SchoolYear struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	StartDate time.Time    `gorm:"not null"`
	EndDate   time.Time    `gorm:"not null"`
	IsCurrent bool         `gorm:"column:is_current;not null;default:false"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (SchoolYear) TableName() string { return "school_years" }

// Code returns the compact year label used in receipt numbers, e.g. "2025-2026" -> "2526".
func (y SchoolYear) Code() string {
	digits := make([]rune, 0, len(y.Name))
	for _, r := range y.Name {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 8 {
		return string(digits[2:4]) + string(digits[6:8])
	}
	if len(digits) > 0 {
		return string(digits)
	}
	return y.StartDate.Format("06")
}

type ClassSeries struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	SchoolYearID snowflake.ID `gorm:"column:school_year_id;not null;index"`
	Name         string       `gorm:"type:text;not null"`
	CreatedAt    time.Time    `gorm:"not null"`
}

func (ClassSeries) TableName() string { return "class_series" }

type Student struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	SchoolYearID snowflake.ID `gorm:"column:school_year_id;not null;index"`
	ClassID      snowflake.ID `gorm:"column:class_id;not null;index"`
	Matricule    string       `gorm:"type:text;not null"`
	FirstName    string       `gorm:"column:first_name;type:text;not null"`
	LastName     string       `gorm:"column:last_name;type:text;not null"`
	CreatedAt    time.Time    `gorm:"not null"`
}

func (Student) TableName() string { return "students" }

func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
