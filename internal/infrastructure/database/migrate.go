package database

import (
	"errors"
	"fmt"

	"clinic-booking/config"
	"clinic-booking/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

// MigrateDirection selects which way RunMigrations moves the schema.
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

var ErrUnknownDirection = errors.New("migration direction must be up or down")

// RunMigrations applies the embedded SQL migrations. Down rolls back a
// single step.
func RunMigrations(cfg config.DBConfig, direction MigrateDirection) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to init migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logrus.Warnf("Failed to close migrator: source=%v db=%v", srcErr, dbErr)
		}
	}()

	switch direction {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Steps(-1)
	default:
		return ErrUnknownDirection
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		logrus.Infof("Migrations %s complete, schema is empty", direction)
	case verr != nil:
		logrus.Warnf("Failed to read migration version: %+v", verr)
	default:
		logrus.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Infof("Migrations %s complete", direction)
	}

	return nil
}
