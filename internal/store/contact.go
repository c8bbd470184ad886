package store

import (
	"database/sql"
	"time"
)

const contactConflict = `ON CONFLICT(server_id, tenant, bucket) DO UPDATE SET
	snapshot = excluded.snapshot,
	name = excluded.name,
	phone = excluded.phone,
	sort_order = excluded.sort_order,
	updated_at = excluded.updated_at`

// SaveContacts caches a page of contacts inside one named bucket.
// startIndex is the caller's page offset; sort_order is assigned from it so
// pages fetched out of order still reconstruct the server's pagination.
// Other buckets holding the same contacts are untouched.
func (db *DB) SaveContacts(tenant, bucket string, startIndex int, contacts []*Contact, chunkSize int) (int, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	now := time.Now().UnixMilli()
	records := make([]Record, 0, len(contacts))
	for i, c := range contacts {
		records = append(records, Record{
			"server_id":  c.ServerID,
			"tenant":     tenant,
			"bucket":     bucket,
			"snapshot":   string(c.Snapshot),
			"name":       c.Name,
			"phone":      c.Phone,
			"sort_order": startIndex + i,
			"updated_at": now,
		})
	}
	return db.BatchUpsert("contacts", contactConflict, records, chunkSize)
}

// ListContacts returns one bucket's contacts in server pagination order.
func (db *DB) ListContacts(tenant, bucket string, limit, offset int) ([]Contact, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, server_id, tenant, bucket, COALESCE(snapshot, ''), name, phone, sort_order, updated_at
		FROM contacts
		WHERE tenant = ? AND bucket = ?
		ORDER BY sort_order ASC
		LIMIT ? OFFSET ?`, tenant, bucket, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		var (
			c        Contact
			snapshot string
		)
		if err := rows.Scan(&c.ID, &c.ServerID, &c.Tenant, &c.Bucket, &snapshot,
			&c.Name, &c.Phone, &c.SortOrder, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if snapshot != "" {
			c.Snapshot = []byte(snapshot)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// GetContact returns a contact from one bucket, or nil when absent.
func (db *DB) GetContact(tenant, bucket, serverID string) (*Contact, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	var (
		c        Contact
		snapshot string
	)
	err := db.QueryRow(`
		SELECT id, server_id, tenant, bucket, COALESCE(snapshot, ''), name, phone, sort_order, updated_at
		FROM contacts
		WHERE tenant = ? AND bucket = ? AND server_id = ?`, tenant, bucket, serverID).
		Scan(&c.ID, &c.ServerID, &c.Tenant, &c.Bucket, &snapshot,
			&c.Name, &c.Phone, &c.SortOrder, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if snapshot != "" {
		c.Snapshot = []byte(snapshot)
	}
	return &c, nil
}

// ContactCount returns the number of contacts cached in a bucket.
func (db *DB) ContactCount(tenant, bucket string) (int, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts WHERE tenant = ? AND bucket = ?`,
		tenant, bucket).Scan(&count)
	return count, err
}

// ClearContactBucket removes one bucket's rows, leaving other buckets intact.
func (db *DB) ClearContactBucket(tenant, bucket string) error {
	if bucket == "" {
		bucket = DefaultBucket
	}
	_, err := db.Exec(`DELETE FROM contacts WHERE tenant = ? AND bucket = ?`, tenant, bucket)
	return err
}

// ClearContacts removes all contacts for a tenant across every bucket.
func (db *DB) ClearContacts(tenant string) error {
	_, err := db.Exec(`DELETE FROM contacts WHERE tenant = ?`, tenant)
	return err
}
