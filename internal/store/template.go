package store

import "time"

const templateConflict = `ON CONFLICT(server_id, tenant, bucket) DO UPDATE SET
	snapshot = excluded.snapshot,
	name = excluded.name,
	status = excluded.status,
	category = excluded.category,
	language = excluded.language,
	sort_order = excluded.sort_order,
	updated_at = excluded.updated_at`

// SaveTemplates caches a page of templates inside one status-filter bucket
// (e.g. "approved", "pending"). The same template may be cached once per
// bucket with an independent sort order.
func (db *DB) SaveTemplates(tenant, bucket string, startIndex int, templates []*Template, chunkSize int) (int, error) {
	if bucket == "" {
		bucket = "all"
	}
	now := time.Now().UnixMilli()
	records := make([]Record, 0, len(templates))
	for i, t := range templates {
		records = append(records, Record{
			"server_id":  t.ServerID,
			"tenant":     tenant,
			"bucket":     bucket,
			"snapshot":   string(t.Snapshot),
			"name":       t.Name,
			"status":     t.Status,
			"category":   t.Category,
			"language":   t.Language,
			"sort_order": startIndex + i,
			"updated_at": now,
		})
	}
	return db.BatchUpsert("templates", templateConflict, records, chunkSize)
}

// ListTemplates returns one bucket's templates in server pagination order.
func (db *DB) ListTemplates(tenant, bucket string, limit, offset int) ([]Template, error) {
	if bucket == "" {
		bucket = "all"
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, server_id, tenant, bucket, COALESCE(snapshot, ''), name, status, category, language, sort_order, updated_at
		FROM templates
		WHERE tenant = ? AND bucket = ?
		ORDER BY sort_order ASC
		LIMIT ? OFFSET ?`, tenant, bucket, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var templates []Template
	for rows.Next() {
		var (
			t        Template
			snapshot string
		)
		if err := rows.Scan(&t.ID, &t.ServerID, &t.Tenant, &t.Bucket, &snapshot,
			&t.Name, &t.Status, &t.Category, &t.Language, &t.SortOrder, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if snapshot != "" {
			t.Snapshot = []byte(snapshot)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// TemplateCount returns the number of templates cached in a bucket.
func (db *DB) TemplateCount(tenant, bucket string) (int, error) {
	if bucket == "" {
		bucket = "all"
	}
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM templates WHERE tenant = ? AND bucket = ?`,
		tenant, bucket).Scan(&count)
	return count, err
}

// ClearTemplateBucket removes one bucket's rows, leaving other buckets intact.
func (db *DB) ClearTemplateBucket(tenant, bucket string) error {
	if bucket == "" {
		bucket = "all"
	}
	_, err := db.Exec(`DELETE FROM templates WHERE tenant = ? AND bucket = ?`, tenant, bucket)
	return err
}

// ClearTemplates removes all templates for a tenant across every bucket.
func (db *DB) ClearTemplates(tenant string) error {
	_, err := db.Exec(`DELETE FROM templates WHERE tenant = ?`, tenant)
	return err
}
