package store

import "database/sql"

// schemaDDL is the full relational schema: prompts/sessions/events/
// compactions tables, one index on (session_id, conv_index) for event
// reads. Applied with IF NOT EXISTS so Open is idempotent across restarts.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS prompts (
	prompt_id  TEXT PRIMARY KEY,
	template   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id           TEXT PRIMARY KEY,
	prompt_id            TEXT NOT NULL REFERENCES prompts(prompt_id),
	prompt_args          TEXT NOT NULL DEFAULT '{}',
	system_prompt        TEXT NOT NULL DEFAULT '',
	tool_definitions     TEXT NOT NULL DEFAULT '[]',
	request_params       TEXT NOT NULL DEFAULT '{}',
	model_identifier     TEXT NOT NULL DEFAULT '',
	workspace_path       TEXT NOT NULL DEFAULT '',
	mode                 TEXT NOT NULL DEFAULT 'default',
	status               TEXT NOT NULL DEFAULT 'active',
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL,
	completed_at         INTEGER
);

CREATE TABLE IF NOT EXISTS events (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id        TEXT NOT NULL REFERENCES sessions(session_id),
	conv_index        INTEGER NOT NULL,
	timestamp         INTEGER NOT NULL,
	role              TEXT NOT NULL,
	content           TEXT,
	reasoning_content TEXT,
	tool_call_id      TEXT,
	tool_call_name    TEXT,
	tool_arguments    TEXT,
	prompt_tokens     INTEGER,
	completion_tokens INTEGER,
	total_tokens      INTEGER,
	metadata          TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_events_session_conv
	ON events(session_id, conv_index);

CREATE TABLE IF NOT EXISTS compactions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL REFERENCES sessions(session_id),
	before_count  INTEGER NOT NULL,
	after_count   INTEGER NOT NULL,
	head_kept     INTEGER NOT NULL,
	tail_kept     INTEGER NOT NULL,
	summary       TEXT NOT NULL,
	timestamp     INTEGER NOT NULL
);
`

func applySchema(db *sql.DB) error {
	_, err := db.Exec(schemaDDL)
	return err
}
