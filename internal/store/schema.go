package store

// tableDef describes a table's current target shape. The ensure pass creates
// missing tables from these definitions; the self-healing check compares the
// live column set against required.
type tableDef struct {
	name     string
	create   string
	required []string
}

var tables = []tableDef{
	{
		name: "conversations",
		create: `CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server_id TEXT NOT NULL,
			tenant TEXT NOT NULL,
			snapshot TEXT,
			last_message_json TEXT,
			last_message_preview TEXT NOT NULL DEFAULT '',
			last_message_type TEXT NOT NULL DEFAULT '',
			last_message_at INTEGER NOT NULL DEFAULT 0,
			unread_count INTEGER NOT NULL DEFAULT 0,
			pinned INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			muted INTEGER NOT NULL DEFAULT 0,
			messages_loaded INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0,
			assigned_to TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			UNIQUE(server_id, tenant)
		)`,
		required: []string{"server_id", "tenant", "snapshot", "last_message_at", "unread_count"},
	},
	{
		name: "messages",
		create: `CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			server_id TEXT,
			wire_id TEXT,
			temp_id TEXT,
			snapshot TEXT,
			message_type TEXT NOT NULL DEFAULT 'text',
			body TEXT NOT NULL DEFAULT '',
			direction TEXT NOT NULL DEFAULT 'in',
			status TEXT NOT NULL DEFAULT 'received',
			error_code TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			timestamp INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT 0,
			media_local_path TEXT NOT NULL DEFAULT '',
			media_status TEXT NOT NULL DEFAULT ''
		)`,
		required: []string{"tenant", "chat_id", "server_id", "wire_id", "temp_id", "snapshot", "status", "timestamp"},
	},
	{
		name: "contacts",
		create: `CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server_id TEXT NOT NULL,
			tenant TEXT NOT NULL,
			bucket TEXT NOT NULL DEFAULT '__all__',
			snapshot TEXT,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE(server_id, tenant, bucket)
		)`,
		// bucket is the column the broken 0003 rebuild can silently lose.
		required: []string{"server_id", "tenant", "bucket", "snapshot", "name", "phone", "sort_order"},
	},
	{
		name: "templates",
		create: `CREATE TABLE IF NOT EXISTS templates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server_id TEXT NOT NULL,
			tenant TEXT NOT NULL,
			bucket TEXT NOT NULL DEFAULT 'all',
			snapshot TEXT,
			name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE(server_id, tenant, bucket)
		)`,
		required: []string{"server_id", "tenant", "bucket", "snapshot", "sort_order"},
	},
	{
		name: "contact_lists",
		create: `CREATE TABLE IF NOT EXISTS contact_lists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server_id TEXT NOT NULL,
			tenant TEXT NOT NULL,
			snapshot TEXT,
			name TEXT NOT NULL DEFAULT '',
			contact_count INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE(server_id, tenant)
		)`,
		required: []string{"server_id", "tenant", "snapshot"},
	},
	{
		name: "lines",
		create: `CREATE TABLE IF NOT EXISTS lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server_id TEXT NOT NULL,
			snapshot TEXT,
			phone TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE(server_id)
		)`,
		required: []string{"server_id", "snapshot", "phone"},
	},
	{
		name: "stats",
		create: `CREATE TABLE IF NOT EXISTS stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant TEXT NOT NULL,
			scope TEXT NOT NULL DEFAULT 'global',
			snapshot TEXT,
			synced_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE(tenant, scope)
		)`,
		required: []string{"tenant", "scope", "snapshot"},
	},
	{
		name: "settings",
		create: `CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant TEXT NOT NULL DEFAULT '__global__',
			key TEXT NOT NULL,
			value TEXT,
			updated_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE(tenant, key)
		)`,
		required: []string{"tenant", "key", "value"},
	},
	{
		name: "quick_replies",
		create: `CREATE TABLE IF NOT EXISTS quick_replies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server_id TEXT NOT NULL,
			tenant TEXT NOT NULL,
			snapshot TEXT,
			shortcut TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE(server_id, tenant)
		)`,
		required: []string{"server_id", "tenant", "snapshot", "shortcut"},
	},
	{
		name: "sync_queue",
		create: `CREATE TABLE IF NOT EXISTS sync_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			op_id TEXT NOT NULL UNIQUE,
			tenant TEXT NOT NULL,
			entity TEXT NOT NULL,
			operation TEXT NOT NULL,
			payload TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 5,
			last_error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0
		)`,
		required: []string{"op_id", "tenant", "entity", "operation", "payload", "status", "retry_count", "max_retries"},
	},
	{
		name: "cache_meta",
		create: `CREATE TABLE IF NOT EXISTS cache_meta (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant TEXT NOT NULL,
			entity TEXT NOT NULL,
			synced_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE(tenant, entity)
		)`,
		required: []string{"tenant", "entity", "synced_at"},
	},
}

var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_chat_server
		ON messages(chat_id, server_id) WHERE server_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_chat_wire
		ON messages(chat_id, wire_id) WHERE wire_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_messages_tenant_chat_ts
		ON messages(tenant, chat_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_temp
		ON messages(temp_id) WHERE temp_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_tenant_last
		ON conversations(tenant, pinned, last_message_at)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_tenant_bucket_order
		ON contacts(tenant, bucket, sort_order)`,
	`CREATE INDEX IF NOT EXISTS idx_templates_tenant_bucket_order
		ON templates(tenant, bucket, sort_order)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_queue_status
		ON sync_queue(status, created_at)`,
}

// searchSchema holds the full-text index over message bodies with its sync
// triggers. It lives in the ensure pass rather than a migration: FTS5 is only
// compiled into the sqlite3 driver under the sqlite_fts5 build tag, and a
// missing module must not wedge the migration version counter.
var searchSchema = []string{
	`CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
		body,
		content='messages',
		content_rowid='id'
	)`,
	`CREATE TRIGGER IF NOT EXISTS messages_fts_ai AFTER INSERT ON messages BEGIN
		INSERT INTO messages_fts(rowid, body) VALUES (new.id, new.body);
	END`,
	`CREATE TRIGGER IF NOT EXISTS messages_fts_ad AFTER DELETE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, body) VALUES ('delete', old.id, old.body);
	END`,
	`CREATE TRIGGER IF NOT EXISTS messages_fts_au AFTER UPDATE OF body ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, body) VALUES ('delete', old.id, old.body);
		INSERT INTO messages_fts(rowid, body) VALUES (new.id, new.body);
	END`,
}

// searchObjects are the sqlite_master entries searchSchema creates, used to
// detect a partially present index that needs a rebuild.
var searchObjects = []string{"messages_fts", "messages_fts_ai", "messages_fts_ad", "messages_fts_au"}

// selfHealTables lists entities known to have previously suffered a broken
// structural migration. Checked unconditionally on every startup, not gated
// by the schema version.
var selfHealTables = []string{"contacts"}
