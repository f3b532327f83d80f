// Package seed bootstraps a demo school year for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/config"
	schooldomain "github.com/smallbiznis/feeledger/internal/school/domain"
	tranchedomain "github.com/smallbiznis/feeledger/internal/tranche/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, clk clock.Clock, cfg config.Config, log *zap.Logger) error {
		if !cfg.SeedDemo {
			return nil
		}
		if cfg.IsProduction() {
			log.Warn("demo seed refused in production")
			return nil
		}
		demo, err := EnsureDemoSchool(context.Background(), conn, node, clk.Now())
		if err != nil {
			return err
		}
		if demo != nil {
			log.Info("demo school seeded",
				zap.String("school_year", demo.Year.Name),
				zap.Int("students", len(demo.Students)),
			)
		}
		return nil
	}),
)

// Demo is what EnsureDemoSchool created.
type Demo struct {
	Year     schooldomain.SchoolYear
	Classes  []schooldomain.ClassSeries
	Students []schooldomain.Student
}

type demoTranche struct {
	name     string
	amount   int64
	deadline time.Time
}

type demoClass struct {
	name        string
	tranches    []demoTranche
	scholarship int64 // on the last tranche, zero for none
	students    [][2]string
}

// EnsureDemoSchool seeds a current school year with two classes when no
// school year exists yet. It returns nil when the ledger is not empty.
func EnsureDemoSchool(ctx context.Context, db *gorm.DB, node *snowflake.Node, now time.Time) (*Demo, error) {
	if db == nil {
		return nil, errors.New("seed database handle is required")
	}
	if node == nil {
		return nil, errors.New("seed id generator is required")
	}

	var demo *Demo
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&schooldomain.SchoolYear{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now = now.UTC()
		startYear := now.Year()
		if now.Month() < time.September {
			startYear--
		}
		year := schooldomain.SchoolYear{
			ID:        node.Generate(),
			Name:      fmt.Sprintf("%d-%d", startYear, startYear+1),
			StartDate: time.Date(startYear, time.September, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(startYear+1, time.July, 31, 0, 0, 0, 0, time.UTC),
			IsCurrent: true,
			CreatedAt: now,
		}
		if err := tx.Create(&year).Error; err != nil {
			return err
		}

		demo = &Demo{Year: year}
		for i, def := range demoClasses(startYear) {
			class, students, err := ensureClassTx(tx, node, year, i+1, def, now)
			if err != nil {
				return err
			}
			demo.Classes = append(demo.Classes, class)
			demo.Students = append(demo.Students, students...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return demo, nil
}

func demoClasses(startYear int) []demoClass {
	deadline := func(year int, month time.Month) time.Time {
		return time.Date(year, month, 15, 0, 0, 0, 0, time.UTC)
	}
	return []demoClass{
		{
			name: "Seconde C",
			tranches: []demoTranche{
				{"Tranche 1", 100000, deadline(startYear, time.October)},
				{"Tranche 2", 80000, deadline(startYear+1, time.January)},
				{"Tranche 3", 70000, deadline(startYear+1, time.April)},
			},
			students: [][2]string{{"Awa", "Mbarga"}, {"Jean", "Nkoulou"}},
		},
		{
			name: "Terminale D",
			tranches: []demoTranche{
				{"Tranche 1", 120000, deadline(startYear, time.October)},
				{"Tranche 2", 100000, deadline(startYear+1, time.January)},
			},
			scholarship: 20000,
			students:    [][2]string{{"Paul", "Etoa"}},
		},
	}
}

func ensureClassTx(tx *gorm.DB, node *snowflake.Node, year schooldomain.SchoolYear, index int, def demoClass, now time.Time) (schooldomain.ClassSeries, []schooldomain.Student, error) {
	class := schooldomain.ClassSeries{
		ID:           node.Generate(),
		SchoolYearID: year.ID,
		Name:         def.name,
		CreatedAt:    now,
	}
	if err := tx.Create(&class).Error; err != nil {
		return class, nil, err
	}

	var last tranchedomain.Tranche
	for i, t := range def.tranches {
		deadline := t.deadline
		last = tranchedomain.Tranche{
			ID:        node.Generate(),
			ClassID:   class.ID,
			Name:      t.name,
			Order:     i + 1,
			Amount:    decimal.NewFromInt(t.amount),
			Deadline:  &deadline,
			CreatedAt: now,
		}
		if err := tx.Create(&last).Error; err != nil {
			return class, nil, err
		}
	}

	if def.scholarship > 0 {
		scholarship := tranchedomain.Scholarship{
			ID:        node.Generate(),
			ClassID:   class.ID,
			TrancheID: last.ID,
			Name:      "Bourse " + def.name,
			Amount:    decimal.NewFromInt(def.scholarship),
			IsActive:  true,
			CreatedAt: now,
		}
		if err := tx.Create(&scholarship).Error; err != nil {
			return class, nil, err
		}
	}

	students := make([]schooldomain.Student, 0, len(def.students))
	for i, name := range def.students {
		student := schooldomain.Student{
			ID:           node.Generate(),
			SchoolYearID: year.ID,
			ClassID:      class.ID,
			Matricule:    fmt.Sprintf("%s-%d%02d", year.Code(), index, i+1),
			FirstName:    name[0],
			LastName:     name[1],
			CreatedAt:    now,
		}
		if err := tx.Create(&student).Error; err != nil {
			return class, nil, err
		}
		students = append(students, student)
	}
	return class, students, nil
}
