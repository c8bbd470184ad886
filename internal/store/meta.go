package store

import (
	"database/sql"
	"time"
)

// TouchSynced records the moment an entity was last refreshed from the
// server for a tenant. Drives the coordinator's staleness computation.
func (db *DB) TouchSynced(tenant, entity string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO cache_meta (tenant, entity, synced_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tenant, entity) DO UPDATE SET synced_at = excluded.synced_at`,
		tenant, entity, now)
	return err
}

// SyncedAt returns the last refresh time for (tenant, entity) in epoch
// milliseconds, or 0 when the entity has never been synced.
func (db *DB) SyncedAt(tenant, entity string) (int64, error) {
	var ts int64
	err := db.QueryRow(`SELECT synced_at FROM cache_meta WHERE tenant = ? AND entity = ?`,
		tenant, entity).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return ts, err
}

// ClearMeta removes sync timestamps for a tenant.
func (db *DB) ClearMeta(tenant string) error {
	_, err := db.Exec(`DELETE FROM cache_meta WHERE tenant = ?`, tenant)
	return err
}

// ClearTenant wipes every tenant-scoped row for one tenant. Lines are
// account-level and survive; use ClearAll for logout.
func (db *DB) ClearTenant(tenant string) error {
	for _, stmt := range []string{
		`DELETE FROM messages WHERE tenant = ?`,
		`DELETE FROM conversations WHERE tenant = ?`,
		`DELETE FROM contacts WHERE tenant = ?`,
		`DELETE FROM templates WHERE tenant = ?`,
		`DELETE FROM contact_lists WHERE tenant = ?`,
		`DELETE FROM stats WHERE tenant = ?`,
		`DELETE FROM settings WHERE tenant = ?`,
		`DELETE FROM quick_replies WHERE tenant = ?`,
		`DELETE FROM sync_queue WHERE tenant = ?`,
		`DELETE FROM cache_meta WHERE tenant = ?`,
	} {
		if _, err := db.Exec(stmt, tenant); err != nil {
			return err
		}
	}
	return nil
}

// ClearAll wipes the entire cache, including account-level rows. Logout only.
func (db *DB) ClearAll() error {
	for _, table := range []string{
		"messages", "conversations", "contacts", "templates", "contact_lists",
		"lines", "stats", "settings", "quick_replies", "sync_queue", "cache_meta",
	} {
		if _, err := db.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}
	return nil
}

// TableCounts reports row counts per table for diagnostics.
func (db *DB) TableCounts() (map[string]int64, error) {
	counts := make(map[string]int64, len(tables))
	for _, t := range tables {
		var n int64
		if err := db.QueryRow(`SELECT COUNT(*) FROM ` + t.name).Scan(&n); err != nil {
			return nil, err
		}
		counts[t.name] = n
	}
	return counts, nil
}
