package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	paymentdomain "github.com/smallbiznis/feeledger/internal/payment/domain"
	ramedomain "github.com/smallbiznis/feeledger/internal/rame/domain"
	"github.com/smallbiznis/feeledger/internal/receipt"
	schooldomain "github.com/smallbiznis/feeledger/internal/school/domain"
	tranchedomain "github.com/smallbiznis/feeledger/internal/tranche/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema. Other dialects go
// through AutoMigrate of the ledger models.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table of the ledger, parents first.
func Models() []interface{} {
	return []interface{}{
		&schooldomain.SchoolYear{},
		&schooldomain.ClassSeries{},
		&schooldomain.Student{},
		&tranchedomain.Tranche{},
		&tranchedomain.Scholarship{},
		&paymentdomain.Payment{},
		&paymentdomain.PaymentDetail{},
		&ramedomain.Status{},
		&receipt.Sequence{},
	}
}

// AutoMigrate creates the ledger tables from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
