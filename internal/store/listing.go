package store

import (
	"fmt"
	"time"
)

// ReplaceContactLists swaps a tenant's contact-list descriptors for a fresh
// set, inside one transaction so a crash mid-save cannot leave the tenant
// with zero cached lists. Falls back to a best-effort non-atomic path when
// the transaction cannot be opened.
func (db *DB) ReplaceContactLists(tenant string, lists []*ContactList) error {
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		// Non-atomic fallback: a brief zero-row window beats losing the save.
		if _, derr := db.Exec(`DELETE FROM contact_lists WHERE tenant = ?`, tenant); derr != nil {
			return fmt.Errorf("clear contact_lists: %w", derr)
		}
		for _, l := range lists {
			if _, ierr := db.Exec(insertContactListSQL,
				l.ServerID, tenant, string(l.Snapshot), l.Name, l.ContactCount, now); ierr != nil {
				return fmt.Errorf("insert contact list %q: %w", l.ServerID, ierr)
			}
		}
		return nil
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM contact_lists WHERE tenant = ?`, tenant); err != nil {
		return fmt.Errorf("clear contact_lists: %w", err)
	}
	for _, l := range lists {
		if _, err := tx.Exec(insertContactListSQL,
			l.ServerID, tenant, string(l.Snapshot), l.Name, l.ContactCount, now); err != nil {
			return fmt.Errorf("insert contact list %q: %w", l.ServerID, err)
		}
	}
	return tx.Commit()
}

const insertContactListSQL = `
	INSERT INTO contact_lists (server_id, tenant, snapshot, name, contact_count, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

// ListContactLists returns a tenant's cached contact-list descriptors.
func (db *DB) ListContactLists(tenant string) ([]ContactList, error) {
	rows, err := db.Query(`
		SELECT id, server_id, tenant, COALESCE(snapshot, ''), name, contact_count, updated_at
		FROM contact_lists
		WHERE tenant = ?
		ORDER BY name ASC`, tenant)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lists []ContactList
	for rows.Next() {
		var (
			l        ContactList
			snapshot string
		)
		if err := rows.Scan(&l.ID, &l.ServerID, &l.Tenant, &snapshot,
			&l.Name, &l.ContactCount, &l.UpdatedAt); err != nil {
			return nil, err
		}
		if snapshot != "" {
			l.Snapshot = []byte(snapshot)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

// ClearContactLists removes all list descriptors for a tenant.
func (db *DB) ClearContactLists(tenant string) error {
	_, err := db.Exec(`DELETE FROM contact_lists WHERE tenant = ?`, tenant)
	return err
}

// ReplaceLines swaps the account's numbered lines for a fresh set. Lines are
// account-level, so the replace is global rather than tenant-scoped.
func (db *DB) ReplaceLines(lines []*Line) error {
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		if _, derr := db.Exec(`DELETE FROM lines`); derr != nil {
			return fmt.Errorf("clear lines: %w", derr)
		}
		for _, l := range lines {
			if _, ierr := db.Exec(insertLineSQL,
				l.ServerID, string(l.Snapshot), l.Phone, l.DisplayName, l.Status, now); ierr != nil {
				return fmt.Errorf("insert line %q: %w", l.ServerID, ierr)
			}
		}
		return nil
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM lines`); err != nil {
		return fmt.Errorf("clear lines: %w", err)
	}
	for _, l := range lines {
		if _, err := tx.Exec(insertLineSQL,
			l.ServerID, string(l.Snapshot), l.Phone, l.DisplayName, l.Status, now); err != nil {
			return fmt.Errorf("insert line %q: %w", l.ServerID, err)
		}
	}
	return tx.Commit()
}

const insertLineSQL = `
	INSERT INTO lines (server_id, snapshot, phone, display_name, status, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

// ListLines returns all cached numbered lines.
func (db *DB) ListLines() ([]Line, error) {
	rows, err := db.Query(`
		SELECT id, server_id, COALESCE(snapshot, ''), phone, display_name, status, updated_at
		FROM lines
		ORDER BY display_name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []Line
	for rows.Next() {
		var (
			l        Line
			snapshot string
		)
		if err := rows.Scan(&l.ID, &l.ServerID, &snapshot,
			&l.Phone, &l.DisplayName, &l.Status, &l.UpdatedAt); err != nil {
			return nil, err
		}
		if snapshot != "" {
			l.Snapshot = []byte(snapshot)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ClearLines removes all cached lines (logout only).
func (db *DB) ClearLines() error {
	_, err := db.Exec(`DELETE FROM lines`)
	return err
}
