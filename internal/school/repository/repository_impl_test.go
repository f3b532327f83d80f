package repository

import (
	"context"
	"testing"
	"time"

	schooldomain "github.com/smallbiznis/feeledger/internal/school/domain"
	"github.com/smallbiznis/feeledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCurrentYearAndStudent(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t, &schooldomain.SchoolYear{}, &schooldomain.ClassSeries{}, &schooldomain.Student{})
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, conn.Create(&schooldomain.SchoolYear{ID: 1, Name: "2024-2025", StartDate: now.AddDate(-1, 0, 0), EndDate: now, CreatedAt: now}).Error)
	require.NoError(t, conn.Create(&schooldomain.SchoolYear{ID: 2, Name: "2025-2026", StartDate: now, EndDate: now.AddDate(1, 0, 0), IsCurrent: true, CreatedAt: now}).Error)
	require.NoError(t, conn.Create(&schooldomain.Student{ID: 10, SchoolYearID: 2, ClassID: 5, Matricule: "M-10", FirstName: "Awa", LastName: "Diop", CreatedAt: now}).Error)

	repo := NewRepository()

	year, err := repo.FindCurrentYear(ctx, conn)
	require.NoError(t, err)
	require.NotNil(t, year)
	assert.EqualValues(t, 2, year.ID)
	assert.Equal(t, "2526", year.Code())

	student, err := repo.LockStudent(ctx, conn, 10)
	require.NoError(t, err)
	require.NotNil(t, student)
	assert.Equal(t, "Awa Diop", student.FullName())

	missing, err := repo.FindStudent(ctx, conn, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEnrolledYear(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t, &schooldomain.SchoolYear{}, &schooldomain.Student{})
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, conn.Create(&schooldomain.SchoolYear{ID: 1, Name: "2024-2025", StartDate: now.AddDate(-1, 0, 0), EndDate: now, CreatedAt: now}).Error)
	require.NoError(t, conn.Create(&schooldomain.SchoolYear{ID: 2, Name: "2025-2026", StartDate: now, EndDate: now.AddDate(1, 0, 0), IsCurrent: true, CreatedAt: now}).Error)
	repo := NewRepository()

	enrolled := &schooldomain.Student{ID: 10, SchoolYearID: 2, ClassID: 5}
	year, err := schooldomain.EnrolledYear(ctx, repo, conn, enrolled, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, year.ID)

	year, err = schooldomain.EnrolledYear(ctx, repo, conn, enrolled, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, year.ID)

	_, err = schooldomain.EnrolledYear(ctx, repo, conn, enrolled, 1)
	assert.ErrorIs(t, err, schooldomain.ErrSchoolYearNotFound)

	_, err = schooldomain.EnrolledYear(ctx, repo, conn, enrolled, 987654)
	assert.ErrorIs(t, err, schooldomain.ErrSchoolYearNotFound)

	orphan := &schooldomain.Student{ID: 11, SchoolYearID: 404, ClassID: 5}
	_, err = schooldomain.EnrolledYear(ctx, repo, conn, orphan, 0)
	assert.ErrorIs(t, err, schooldomain.ErrSchoolYearNotFound)

	_, err = schooldomain.EnrolledYear(ctx, repo, conn, nil, 0)
	assert.ErrorIs(t, err, schooldomain.ErrStudentNotFound)
}
