package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Tranche is one ordered installment of a class's tuition.
// Order is authoritative for allocation and discount absorption.
type Tranche struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	ClassID   snowflake.ID    `json:"class_id" gorm:"column:class_id;not null;uniqueIndex:ux_tranche_class_order"`
	Name      string          `json:"name" gorm:"type:text;not null"`
	Order     int             `json:"order" gorm:"column:tranche_order;not null;uniqueIndex:ux_tranche_class_order"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Deadline  *time.Time      `json:"deadline,omitempty"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null"`
}

func (Tranche) TableName() string { return "payment_tranches" }

// Scholarship is a fixed reduction on one tranche, granted to a whole class.
type Scholarship struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	ClassID   snowflake.ID    `json:"class_id" gorm:"column:class_id;not null;index"`
	TrancheID snowflake.ID    `json:"tranche_id" gorm:"column:tranche_id;not null"`
	Name      string          `json:"name" gorm:"type:text;not null;default:''"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	IsActive  bool            `json:"is_active" gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null"`
}

func (Scholarship) TableName() string { return "class_scholarships" }

// Schedule is everything pricing needs to know about a class.
type Schedule struct {
	ClassID     snowflake.ID
	Tranches    []Tranche
	Scholarship *Scholarship
}

// TotalBase sums the base amount of every tranche.
func (s Schedule) TotalBase() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.Tranches {
		total = total.Add(t.Amount)
	}
	return total
}

func (s Schedule) HasScholarship() bool {
	return s.Scholarship != nil && s.Scholarship.IsActive
}

// SortTranches orders tranches ascending by Order, ties broken by ID.
func SortTranches(items []Tranche) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].ID < items[j].ID
	})
}
