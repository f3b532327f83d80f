package domain

import "errors"

var (
	ErrStudentNotFound    = errors.New("student_not_found")
	ErrSchoolYearNotFound = errors.New("school_year_not_found")
	ErrNoCurrentYear      = errors.New("no_current_school_year")
)
