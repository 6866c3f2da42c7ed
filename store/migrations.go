package store

import "database/sql"

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS execution_history (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    execution_id   TEXT NOT NULL,
    code_content   TEXT NOT NULL,
    execution_kind TEXT NOT NULL,
    output         TEXT NOT NULL DEFAULT '',
    error_output   TEXT NOT NULL DEFAULT '',
    exit_code      INTEGER NOT NULL DEFAULT 0,
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    timed_out      INTEGER NOT NULL DEFAULT 0,
    created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_execution_history_created
    ON execution_history(created_at DESC);

CREATE TABLE IF NOT EXISTS code_analysis (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    file_path    TEXT NOT NULL,
    element_kind TEXT NOT NULL,
    name         TEXT NOT NULL,
    line_start   INTEGER,
    line_end     INTEGER,
    content      TEXT,
    parent       TEXT NOT NULL DEFAULT '',
    dependencies TEXT NOT NULL DEFAULT '[]',
    calls        TEXT NOT NULL DEFAULT '[]',
    created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_code_analysis_file
    ON code_analysis(file_path);

CREATE TABLE IF NOT EXISTS comments (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    file_path     TEXT NOT NULL,
    line_number   INTEGER,
    element_name  TEXT NOT NULL DEFAULT '',
    comment_text  TEXT NOT NULL,
    comment_type  TEXT NOT NULL DEFAULT 'general',
    created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_comments_file
    ON comments(file_path);

CREATE TABLE IF NOT EXISTS code_snippets (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    code        TEXT NOT NULL,
    language    TEXT NOT NULL DEFAULT 'python',
    category    TEXT NOT NULL DEFAULT 'general',
    created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	var current int
	row := db.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&current); err != nil {
		// Table doesn't exist or is empty — run initial schema
		current = 0
	}

	if current >= schemaVersion {
		return nil
	}

	if current < 1 {
		if _, err := db.Exec(schemaV1); err != nil {
			return err
		}
	}

	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
	return err
}
