package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	schooldomain "github.com/smallbiznis/feeledger/internal/school/domain"
	"github.com/smallbiznis/feeledger/pkg/db"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() schooldomain.Repository {
	return &repository{}
}

const studentColumns = `id, school_year_id, class_id, matricule, first_name, last_name, created_at`

func (r *repository) FindStudent(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*schooldomain.Student, error) {
	var student schooldomain.Student
	err := conn.WithContext(ctx).Raw(
		`SELECT `+studentColumns+`
		 FROM students
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&student).Error
	if err != nil {
		return nil, err
	}
	if student.ID == 0 {
		return nil, nil
	}
	return &student, nil
}

func (r *repository) LockStudent(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*schooldomain.Student, error) {
	var student schooldomain.Student
	err := conn.WithContext(ctx).Raw(
		`SELECT `+studentColumns+`
		 FROM students
		 WHERE id = ?`+db.ForUpdate(conn),
		id,
	).Scan(&student).Error
	if err != nil {
		return nil, err
	}
	if student.ID == 0 {
		return nil, nil
	}
	return &student, nil
}

func (r *repository) FindYear(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*schooldomain.SchoolYear, error) {
	var year schooldomain.SchoolYear
	err := conn.WithContext(ctx).Raw(
		`SELECT id, name, start_date, end_date, is_current, created_at
		 FROM school_years
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&year).Error
	if err != nil {
		return nil, err
	}
	if year.ID == 0 {
		return nil, nil
	}
	return &year, nil
}

func (r *repository) FindCurrentYear(ctx context.Context, conn *gorm.DB) (*schooldomain.SchoolYear, error) {
	var year schooldomain.SchoolYear
	err := conn.WithContext(ctx).Raw(
		`SELECT id, name, start_date, end_date, is_current, created_at
		 FROM school_years
		 WHERE is_current = true
		 ORDER BY start_date DESC
		 LIMIT 1`,
	).Scan(&year).Error
	if err != nil {
		return nil, err
	}
	if year.ID == 0 {
		return nil, nil
	}
	return &year, nil
}
