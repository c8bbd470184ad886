package store

import (
	"database/sql"
	"time"
)

// PutStat upserts a dashboard statistic blob. An empty scope maps to the
// "global" sentinel; the uniqueness index used for the upsert would treat
// two NULL scopes as distinct rows.
func (db *DB) PutStat(tenant, scope string, snapshot []byte) error {
	if scope == "" {
		scope = GlobalScope
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO stats (tenant, scope, snapshot, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant, scope) DO UPDATE SET
			snapshot = excluded.snapshot,
			synced_at = excluded.synced_at`,
		tenant, scope, string(snapshot), now)
	return err
}

// GetStat returns a statistic blob, or nil when absent.
func (db *DB) GetStat(tenant, scope string) (*Stat, error) {
	if scope == "" {
		scope = GlobalScope
	}
	var (
		s        Stat
		snapshot string
	)
	err := db.QueryRow(`
		SELECT id, tenant, scope, COALESCE(snapshot, ''), synced_at
		FROM stats WHERE tenant = ? AND scope = ?`, tenant, scope).
		Scan(&s.ID, &s.Tenant, &s.Scope, &snapshot, &s.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if snapshot != "" {
		s.Snapshot = []byte(snapshot)
	}
	return &s, nil
}

// ClearStats removes all statistic blobs for a tenant.
func (db *DB) ClearStats(tenant string) error {
	_, err := db.Exec(`DELETE FROM stats WHERE tenant = ?`, tenant)
	return err
}

// PutSetting upserts a settings blob. An empty tenant maps to the
// "__global__" sentinel for the same NULL-distinctness reason as stats.
func (db *DB) PutSetting(tenant, key string, value []byte) error {
	if tenant == "" {
		tenant = GlobalTenant
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO settings (tenant, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		tenant, key, string(value), now)
	return err
}

// GetSetting returns a settings blob and its last update time. A missing key
// yields nil data and a zero timestamp, not an error.
func (db *DB) GetSetting(tenant, key string) ([]byte, int64, error) {
	if tenant == "" {
		tenant = GlobalTenant
	}
	var (
		value     sql.NullString
		updatedAt int64
	)
	err := db.QueryRow(`SELECT value, updated_at FROM settings WHERE tenant = ? AND key = ?`,
		tenant, key).Scan(&value, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if !value.Valid {
		return nil, updatedAt, nil
	}
	return []byte(value.String), updatedAt, nil
}

// ClearSettings removes all settings for a tenant (global rows stay).
func (db *DB) ClearSettings(tenant string) error {
	if tenant == "" {
		return nil
	}
	_, err := db.Exec(`DELETE FROM settings WHERE tenant = ?`, tenant)
	return err
}
