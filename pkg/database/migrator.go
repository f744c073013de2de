package database

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator applies embedded golang-migrate files to a PostgreSQL database.
type Migrator struct {
	databaseURL string
	source      fs.FS
}

// NewMigrator creates a Migrator. source must contain NNNNNN_name.{up,down}.sql files at its root.
func NewMigrator(databaseURL string, source fs.FS) *Migrator {
	return &Migrator{databaseURL: databaseURL, source: source}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	d, err := iofs.New(m.source, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	mg, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(m.databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}

	return mg, nil
}

func closeMigrate(mg *migrate.Migrate) error {
	srcErr, dbErr := mg.Close()

	return errors.Join(srcErr, dbErr)
}

// Up applies all pending migrations. Having nothing to apply is not an error.
func (m *Migrator) Up() (err error) {
	mg, err := m.open()
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, closeMigrate(mg)) }()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Down rolls back a single migration step.
func (m *Migrator) Down() (err error) {
	mg, err := m.open()
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, closeMigrate(mg)) }()

	if err := mg.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	return nil
}

// Status returns the applied version. A database with no migrations reports version 0.
func (m *Migrator) Status() (version uint, dirty bool, err error) {
	mg, err := m.open()
	if err != nil {
		return 0, false, err
	}

	defer func() { err = errors.Join(err, closeMigrate(mg)) }()

	version, dirty, err = mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}

	return version, dirty, nil
}

// migrateURL rewrites a libpq-style URL to the scheme the pgx/v5 migrate driver registers.
func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}

	return databaseURL
}
