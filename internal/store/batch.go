package store

import (
	"fmt"
	"sort"
	"strings"
)

// Record is a loosely-typed row destined for one table. Keys are column
// names; values are sanitized before writing.
type Record map[string]any

// oversizedTextLimit is the per-field size above which the individual-insert
// fallback nullifies text values before retrying a failed record.
const oversizedTextLimit = 64 << 10

// DefaultChunkSize is used when a caller passes a non-positive chunk size.
const DefaultChunkSize = 50

// BatchUpsert writes records to table in chunks, each chunk inside one
// transaction. conflict is the ON CONFLICT clause appended to every insert
// (may be empty for plain inserts).
//
// Record fields are filtered down to columns that actually exist on the live
// table, so a record carrying fields from a newer or older schema does not
// fail the write. When a chunk transaction fails, its records are retried
// individually; a record that still fails is retried once more with
// oversized text fields nullified. The call errors only when a non-empty
// batch saved zero records.
func (db *DB) BatchUpsert(table, conflict string, records []Record, chunkSize int) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	live, err := db.liveColumns(table)
	if err != nil {
		return 0, fmt.Errorf("live columns for %s: %w", table, err)
	}

	prepared := make([]Record, 0, len(records))
	for _, rec := range records {
		filtered := make(Record, len(rec))
		for k, v := range rec {
			if live[k] {
				filtered[k] = v
			}
		}
		if len(filtered) == 0 {
			continue
		}
		prepared = append(prepared, SanitizeRecord(filtered))
	}
	if len(prepared) == 0 {
		return 0, fmt.Errorf("batch upsert %s: no record matched live columns", table)
	}

	saved := 0
	for start := 0; start < len(prepared); start += chunkSize {
		end := min(start+chunkSize, len(prepared))
		chunk := prepared[start:end]

		n, err := db.insertChunkTx(table, conflict, chunk)
		if err != nil {
			// Degrade to per-record inserts with fallback sanitization.
			n = db.insertIndividually(table, conflict, chunk)
		}
		saved += n
	}

	if saved == 0 {
		return 0, fmt.Errorf("batch upsert %s: all %d records failed", table, len(records))
	}
	return saved, nil
}

func (db *DB) insertChunkTx(table, conflict string, chunk []Record) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range chunk {
		stmt, args := buildInsert(table, conflict, rec)
		if _, err := tx.Exec(stmt, args...); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit chunk: %w", err)
	}
	return len(chunk), nil
}

func (db *DB) insertIndividually(table, conflict string, chunk []Record) int {
	saved := 0
	for _, rec := range chunk {
		stmt, args := buildInsert(table, conflict, rec)
		if _, err := db.Exec(stmt, args...); err == nil {
			saved++
			continue
		}

		// Retry with oversized text fields nullified; some environments
		// reject very large field values.
		retried := nullifyOversized(rec)
		stmt, args = buildInsert(table, conflict, retried)
		if _, err := db.Exec(stmt, args...); err == nil {
			saved++
		}
	}
	return saved
}

func buildInsert(table, conflict string, rec Record) (string, []any) {
	cols := make([]string, 0, len(rec))
	for k := range rec {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	args := make([]any, 0, len(cols))
	placeholders := make([]string, 0, len(cols))
	quoted := make([]string, 0, len(cols))
	for _, c := range cols {
		args = append(args, rec[c])
		placeholders = append(placeholders, "?")
		quoted = append(quoted, fmt.Sprintf("%q", c))
	}

	stmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if conflict != "" {
		stmt += " " + conflict
	}
	return stmt, args
}

func nullifyOversized(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if s, ok := v.(string); ok && len(s) > oversizedTextLimit {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}
