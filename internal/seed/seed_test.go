package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	schooldomain "github.com/smallbiznis/feeledger/internal/school/domain"
	tranchedomain "github.com/smallbiznis/feeledger/internal/tranche/domain"
	"github.com/smallbiznis/feeledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDemoSchool(t *testing.T) {
	conn := dbtest.Open(t,
		&schooldomain.SchoolYear{},
		&schooldomain.ClassSeries{},
		&schooldomain.Student{},
		&tranchedomain.Tranche{},
		&tranchedomain.Scholarship{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	demo, err := EnsureDemoSchool(ctx, conn, node, time.Date(2026, time.February, 3, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, demo)
	assert.Equal(t, "2025-2026", demo.Year.Name)
	assert.True(t, demo.Year.IsCurrent)
	assert.Len(t, demo.Classes, 2)
	require.Len(t, demo.Students, 3)
	assert.Equal(t, "2526-101", demo.Students[0].Matricule)
	assert.Equal(t, "2526-201", demo.Students[2].Matricule)

	var tranches []tranchedomain.Tranche
	require.NoError(t, conn.Where("class_id = ?", demo.Classes[0].ID).Order("tranche_order").Find(&tranches).Error)
	require.Len(t, tranches, 3)
	assert.Equal(t, "100000", tranches[0].Amount.String())
	assert.Equal(t, 3, tranches[2].Order)

	var scholarships []tranchedomain.Scholarship
	require.NoError(t, conn.Find(&scholarships).Error)
	require.Len(t, scholarships, 1)
	assert.Equal(t, demo.Classes[1].ID, scholarships[0].ClassID)

	again, err := EnsureDemoSchool(ctx, conn, node, time.Now())
	require.NoError(t, err)
	assert.Nil(t, again)

	var years int64
	require.NoError(t, conn.Model(&schooldomain.SchoolYear{}).Count(&years).Error)
	assert.EqualValues(t, 1, years)
}

func TestEnsureDemoSchoolRequiresHandles(t *testing.T) {
	_, err := EnsureDemoSchool(context.Background(), nil, nil, time.Now())
	assert.Error(t, err)
}
