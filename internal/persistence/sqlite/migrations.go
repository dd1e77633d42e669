package sqlite

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		email TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (email COLLATE NOCASE)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		permissions TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (group_id, user_id),
		FOREIGN KEY (group_id) REFERENCES groups (id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS group_members_user_idx ON group_members (user_id)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT NOT NULL PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0 CHECK (capacity >= 0),
		auto_accept INTEGER NOT NULL DEFAULT 0,
		availability_enabled INTEGER NOT NULL DEFAULT 0,
		availability_rules TEXT NOT NULL DEFAULT '[]',
		max_booking_horizon_days INTEGER NOT NULL DEFAULT 0,
		group_id TEXT NULL REFERENCES groups (id) ON DELETE SET NULL,
		active INTEGER NOT NULL DEFAULT 1,
		timezone TEXT NOT NULL DEFAULT '',
		smtp TEXT NULL,
		permissions TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS rooms_email_idx ON rooms (email COLLATE NOCASE)`,
	`CREATE TABLE IF NOT EXISTS calendar_objects (
		id TEXT NOT NULL PRIMARY KEY,
		calendar_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		uid TEXT NOT NULL,
		data BLOB NOT NULL,
		etag TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (calendar_id, uid),
		UNIQUE (calendar_id, uri)
	)`,
}
