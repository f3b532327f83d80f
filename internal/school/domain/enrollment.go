package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// EnrolledYear resolves the school year a request about student refers to.
// A zero requested id means the student's own year. A student is enrolled in
// one year only, so any other year is reported as not found for them.
func EnrolledYear(ctx context.Context, repo Repository, db *gorm.DB, student *Student, requested snowflake.ID) (*SchoolYear, error) {
	if student == nil {
		return nil, ErrStudentNotFound
	}
	if requested != 0 && requested != student.SchoolYearID {
		return nil, fmt.Errorf("%w: student %s is not enrolled in year %s", ErrSchoolYearNotFound, student.ID, requested)
	}

	year, err := repo.FindYear(ctx, db, student.SchoolYearID)
	if err != nil {
		return nil, err
	}
	if year == nil {
		return nil, ErrSchoolYearNotFound
	}
	return year, nil
}
