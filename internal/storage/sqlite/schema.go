package sqlite

import "github.com/steveyegge/govern/internal/storage/migrations"

// schemaMigrations builds the index schema. Timestamps are stored as
// RFC 3339 text in UTC so lexical order is chronological.
var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "activity log entries",
		Up: `
CREATE TABLE IF NOT EXISTS log_entries (
    log_id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    phase TEXT NOT NULL,
    task_id TEXT NOT NULL DEFAULT '',
    plan_step INTEGER NOT NULL DEFAULT 0,
    action_type TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL CHECK(status IN ('SUCCESS', 'FAILURE')),
    message TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    evidence_citation TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_log_entries_session ON log_entries(session_id);
CREATE INDEX IF NOT EXISTS idx_log_entries_phase ON log_entries(phase);
CREATE INDEX IF NOT EXISTS idx_log_entries_status ON log_entries(status);
CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp ON log_entries(timestamp);
`,
		Down: `DROP TABLE IF EXISTS log_entries;`,
	},
	{
		Version:     2,
		Description: "lesson transitions",
		Up: `
CREATE TABLE IF NOT EXISTS lesson_transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lesson_id TEXT NOT NULL,
    task_id TEXT NOT NULL DEFAULT '',
    from_status TEXT NOT NULL,
    to_status TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lesson_transitions_lesson ON lesson_transitions(lesson_id);
`,
		Down: `DROP TABLE IF EXISTS lesson_transitions;`,
	},
}
