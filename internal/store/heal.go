package store

import (
	"fmt"

	"go.uber.org/zap"
)

// StepResult is the outcome of one initialization step.
type StepResult struct {
	Name string
	Err  error
}

// SchemaReport aggregates per-step outcomes from Init.
type SchemaReport struct {
	MigrationVersion uint
	Dirty            bool
	// Degraded is set when one or more indexes could not be created; the
	// store stays usable with unindexed queries.
	Degraded bool
	// Healed lists tables that were dropped and recreated by the
	// self-healing check.
	Healed []string
	// SearchAvailable reports whether the FTS5 index could be created.
	// Binaries built without the sqlite_fts5 tag fall back to LIKE scans.
	SearchAvailable bool
	Steps           []StepResult
}

func (r *SchemaReport) record(name string, err error) {
	r.Steps = append(r.Steps, StepResult{Name: name, Err: err})
}

// Failed returns the steps that reported an error.
func (r *SchemaReport) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// ensureTables creates every table that does not exist yet. Create-if-missing
// keeps this idempotent across relaunches and safe after partial migrations.
func (db *DB) ensureTables(report *SchemaReport) error {
	for _, t := range tables {
		_, err := db.Exec(t.create)
		report.record("ensure:"+t.name, err)
		if err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	return nil
}

// selfHeal inspects the live column set of tables known to have suffered
// broken structural migrations. A rebuild can fail in ways that still let
// the version bump succeed, so this runs on every startup regardless of the
// recorded schema version. A table missing required columns is dropped and
// recreated from the current definition; the cache repopulates from the
// server on the next sync.
func (db *DB) selfHeal(report *SchemaReport, logger *zap.Logger) {
	for _, name := range selfHealTables {
		def, ok := findTable(name)
		if !ok {
			continue
		}

		missing, err := db.missingColumns(def)
		if err != nil {
			report.record("heal:"+name, err)
			logger.Warn("self-heal check failed", zap.String("table", name), zap.Error(err))
			continue
		}
		if len(missing) == 0 {
			report.record("heal:"+name, nil)
			continue
		}

		logger.Warn("table missing required columns, rebuilding",
			zap.String("table", name),
			zap.Strings("missing", missing))

		err = db.dropAndRecreate(def)
		report.record("heal:"+name, err)
		if err != nil {
			logger.Error("self-heal rebuild failed", zap.String("table", name), zap.Error(err))
			continue
		}
		report.Healed = append(report.Healed, name)
	}
}

func (db *DB) missingColumns(def tableDef) ([]string, error) {
	live, err := db.liveColumns(def.name)
	if err != nil {
		return nil, err
	}
	// A table that does not exist at all has no columns; treat every
	// required column as missing only if the ensure pass somehow skipped it.
	var missing []string
	for _, col := range def.required {
		if !live[col] {
			missing = append(missing, col)
		}
	}
	return missing, nil
}

func (db *DB) dropAndRecreate(def tableDef) error {
	if _, err := db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, def.name)); err != nil {
		return fmt.Errorf("drop %s: %w", def.name, err)
	}
	if _, err := db.Exec(def.create); err != nil {
		return fmt.Errorf("recreate %s: %w", def.name, err)
	}
	db.invalidateColumns(def.name)
	return nil
}

// ensureSearch creates the full-text index over message bodies. FTS5 is an
// optional module of the sqlite3 driver (sqlite_fts5 build tag), so failure
// is tolerated: the index objects are removed and SearchMessages falls back
// to LIKE scans. When part of the index was missing (first run, or a stretch
// of writes under a build without the module) the index is rebuilt from the
// messages table.
func (db *DB) ensureSearch(report *SchemaReport, logger *zap.Logger) {
	present, err := db.countSearchObjects()
	if err != nil {
		report.record("search", err)
		return
	}

	for _, stmt := range searchSchema {
		if _, err := db.Exec(stmt); err != nil {
			report.record("search", err)
			logger.Warn("full-text index unavailable, message search falls back to scans", zap.Error(err))
			db.dropSearchTriggers()
			return
		}
	}

	if present < len(searchObjects) {
		if _, err := db.Exec(`INSERT INTO messages_fts(messages_fts) VALUES('rebuild')`); err != nil {
			report.record("search", fmt.Errorf("rebuild messages_fts: %w", err))
			return
		}
	}

	report.record("search", nil)
	report.SearchAvailable = true
	db.fts.Store(true)
}

func (db *DB) countSearchObjects() (int, error) {
	var present int
	for _, name := range searchObjects {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, name).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("inspect %s: %w", name, err)
		}
		present += n
	}
	return present, nil
}

// dropSearchTriggers removes the index sync triggers so message writes keep
// working against a database whose index was built by an FTS5-enabled binary.
func (db *DB) dropSearchTriggers() {
	for _, name := range []string{"messages_fts_ai", "messages_fts_ad", "messages_fts_au"} {
		_, _ = db.Exec(`DROP TRIGGER IF EXISTS ` + name)
	}
}

// ensureIndexes creates all indexes. Failures are non-fatal: the cache
// degrades to unindexed queries and the report marks the store degraded.
func (db *DB) ensureIndexes(report *SchemaReport, logger *zap.Logger) {
	for _, stmt := range indexes {
		_, err := db.Exec(stmt)
		report.record("index", err)
		if err != nil {
			report.Degraded = true
			logger.Warn("index creation failed, queries degrade to scans", zap.Error(err))
		}
	}
}

func findTable(name string) (tableDef, bool) {
	for _, t := range tables {
		if t.name == name {
			return t, true
		}
	}
	return tableDef{}, false
}
