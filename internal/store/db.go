package store

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB wraps the single SQLite connection owned by the cache layer.
// All tenant data lives in one file-backed database opened in WAL mode.
type DB struct {
	*sql.DB
	path string

	initMu     sync.Mutex
	initDone   bool
	lastReport *SchemaReport

	// fts is set during Init when the FTS5 index is usable; SearchMessages
	// falls back to LIKE scans otherwise.
	fts atomic.Bool

	colMu   sync.Mutex
	columns map[string]map[string]bool
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
// The schema is not touched until Init is called.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{
		DB:      db,
		path:    path,
		columns: make(map[string]map[string]bool),
	}, nil
}

// Init brings the schema to the current version: runs pending migrations,
// ensures every table exists, runs the self-healing consistency check, and
// creates indexes. Idempotent; concurrent callers share one initialization.
// A failed Init clears the in-flight state so a later call retries cleanly.
func (db *DB) Init(logger *zap.Logger) (*SchemaReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db.initMu.Lock()
	defer db.initMu.Unlock()
	if db.initDone {
		return db.lastReport, nil
	}

	report := &SchemaReport{}

	// Versioned migrations. A failure here is recorded but not fatal: the
	// ensure pass and the self-healing check below are the safety net for
	// partially applied or broken migrations.
	mres, err := db.Migrate()
	report.record("migrate", err)
	if err != nil {
		logger.Warn("migrations failed, relying on ensure pass", zap.Error(err))
	} else {
		report.MigrationVersion = mres.Version
		report.Dirty = mres.Dirty
		if mres.Changed {
			logger.Info("migrations applied", zap.Uint("version", mres.Version))
		}
	}

	// Table creation failures are fatal.
	if err := db.ensureTables(report); err != nil {
		return nil, fmt.Errorf("ensure tables: %w", err)
	}

	db.selfHeal(report, logger)

	// Optional full-text index; search degrades to scans without it.
	db.ensureSearch(report, logger)

	// Index failures degrade to unindexed queries.
	db.ensureIndexes(report, logger)

	db.initDone = true
	db.lastReport = report
	return report, nil
}

// liveColumns returns the set of columns that actually exist on the given
// table, caching the result. Used to filter batch records against schema drift.
func (db *DB) liveColumns(table string) (map[string]bool, error) {
	db.colMu.Lock()
	defer db.colMu.Unlock()
	if cols, ok := db.columns[table]; ok {
		return cols, nil
	}

	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	db.columns[table] = cols
	return cols, nil
}

// invalidateColumns drops the cached column set after a structural change.
func (db *DB) invalidateColumns(table string) {
	db.colMu.Lock()
	delete(db.columns, table)
	db.colMu.Unlock()
}
