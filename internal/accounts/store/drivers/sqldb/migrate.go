package sqldb

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqldb/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations applies any pending migrations from the schema embedded
// for the store's driver.
func (s *Store) ApplyMigrations() error {
	// 1. Pick the migration driver and schema for the dialect
	var (
		driver database.Driver
		schema fs.FS
		dir    string
		err    error
	)
	switch s.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(s.db.DB, &sqlite.Config{})
		schema, dir = migrations.SQLite, "sqlite"
	default:
		driver, err = postgres.WithInstance(s.db.DB, &postgres.Config{})
		schema, dir = migrations.Postgres, "postgres"
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	// 2. Create the iofs (embedded filesystem) source driver
	source, err := iofs.New(schema, dir)
	if err != nil {
		return err
	}

	// 3. Create the migrate instance. We never Close it, that would close
	// the shared *sql.DB.
	instance, err := migrate.NewWithInstance("iofs", source, s.driver, driver)
	if err != nil {
		return err
	}

	// 4. Apply all up migrations
	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
