package sqlstore

// Statements run by Migrate. Written in the dialect shared by SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		handle          TEXT PRIMARY KEY,
		display_name    TEXT NOT NULL,
		bio             TEXT NOT NULL,
		role            TEXT NOT NULL,
		profile_picture TEXT NOT NULL,
		post_count      INTEGER NOT NULL DEFAULT 0,
		password_hash   TEXT NOT NULL,
		pin_hash        TEXT NOT NULL DEFAULT '',
		parent_handle   TEXT NOT NULL DEFAULT '',
		created_at      BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS policies (
		handle                 TEXT PRIMARY KEY REFERENCES accounts(handle),
		session_budget_minutes INTEGER NOT NULL,
		content_filter_enabled BOOLEAN NOT NULL,
		post_approval_required BOOLEAN NOT NULL,
		view_only              BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id                  TEXT PRIMARY KEY,
		author_handle       TEXT NOT NULL REFERENCES accounts(handle),
		author_display_name TEXT NOT NULL,
		content             TEXT NOT NULL,
		avatar_snapshot     TEXT NOT NULL,
		created_at          BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at)`,
	`CREATE TABLE IF NOT EXISTS likes (
		post_id TEXT NOT NULL REFERENCES posts(id),
		handle  TEXT NOT NULL,
		PRIMARY KEY (post_id, handle)
	)`,
	`CREATE INDEX IF NOT EXISTS likes_handle_idx ON likes (handle)`,
}
