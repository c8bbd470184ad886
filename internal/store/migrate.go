package store

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/zapbox/internal/store/migrations"
)

// MigrateResult describes what happened during migration.
type MigrateResult struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Migrate runs all pending migrations in strictly ascending order. Applied
// versions are recorded by the driver and never re-run. Each migration file
// executes inside a transaction, so a failed structural step (e.g. the
// contacts rebuild) rolls back to the pre-step table instead of leaving a
// renamed orphan behind.
func (db *DB) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	// A run that crashed mid-migration leaves the version latched with the
	// dirty flag set, which blocks every future Up. The ensure pass and the
	// self-healing check recreate whatever the partial step missed, so the
	// flag is cleared here instead of wedging the store forever.
	if version, dirty, verr := m.Version(); verr == nil && dirty {
		if ferr := m.Force(int(version)); ferr != nil {
			return nil, fmt.Errorf("clear dirty version %d: %w", version, ferr)
		}
	}

	err = m.Up()
	changed := true
	if err == migrate.ErrNoChange {
		changed = false
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("migration up: %w", err)
	}

	version, dirty, _ := m.Version()
	return &MigrateResult{
		Version: version,
		Dirty:   dirty,
		Changed: changed,
	}, nil
}
