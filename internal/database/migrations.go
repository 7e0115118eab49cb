package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    handle TEXT UNIQUE NOT NULL,
    display_name TEXT,
    email TEXT,
    api_token TEXT UNIQUE,
    stripe_customer_id TEXT,
    persona TEXT,
    interests TEXT,
    bio TEXT,
    public INTEGER DEFAULT 0,
    last_active_at TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS curation_configs (
    user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    enabled INTEGER DEFAULT 1,
    last_check_at TEXT,
    last_success_at TEXT,
    consecutive_failures INTEGER DEFAULT 0,
    articles_sent_today INTEGER DEFAULT 0,
    last_reset_date TEXT
);

CREATE TABLE IF NOT EXISTS seen_articles (
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    title TEXT,
    seen_at TEXT DEFAULT (datetime('now')),
    PRIMARY KEY (user_id, url)
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
    kind TEXT NOT NULL DEFAULT 'chat' CHECK(kind IN ('chat', 'digest')),
    content TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS knowledge_items (
    id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT 'manual',
    tags TEXT,
    public INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS curation_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('success', 'partial', 'failed')),
    users_selected INTEGER DEFAULT 0,
    users_succeeded INTEGER DEFAULT 0,
    users_skipped INTEGER DEFAULT 0,
    users_errored INTEGER DEFAULT 0,
    articles_sent INTEGER DEFAULT 0,
    avg_relevance REAL DEFAULT 0,
    duration_ms INTEGER DEFAULT 0,
    errors TEXT
);

CREATE INDEX IF NOT EXISTS idx_users_token ON users(api_token);
CREATE INDEX IF NOT EXISTS idx_users_active ON users(last_active_at);
CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_knowledge_user ON knowledge_items(user_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_runs_started ON curation_runs(started_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
