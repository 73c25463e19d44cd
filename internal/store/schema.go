package store

import "time"

// Task represents one recorded agent task.
type Task struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Backend   string    `json:"backend"`
	SessionID string    `json:"session_id,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Message row kind labels. Role kinds mirror normalized.Role; KindPrompt
// marks the discrete user prompt entry at message index 0.
const (
	KindPrompt = "prompt"
)

// MessageRow is one persisted normalized message. Payload is the message
// JSON blob; rows that predate normalized storage have an empty payload and
// only a raw-event reference, and are normalized lazily at read time.
// Uniqueness of (task_id, logical id) is reconstructed at read time, not
// enforced by the schema.
type MessageRow struct {
	ID            int64  `json:"id"`
	TaskID        string `json:"task_id"`
	MessageIndex  int    `json:"message_index"`
	Kind          string `json:"kind"`
	Payload       string `json:"payload,omitempty"`
	FormatVersion int    `json:"format_version"`
	RawEventID    int64  `json:"raw_event_id,omitempty"`
}

// RawEvent is one backend event exactly as delivered, kept for
// version-aware reprocessing.
type RawEvent struct {
	ID      int64  `json:"id"`
	TaskID  string `json:"task_id"`
	Seq     int    `json:"seq"`
	Payload string `json:"payload"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT UNIQUE NOT NULL,
	backend TEXT NOT NULL,
	session_id TEXT DEFAULT '',
	prompt TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'running',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS raw_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_raw_events_task ON raw_events(task_id, seq);

CREATE TABLE IF NOT EXISTS task_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL,
	message_index INTEGER NOT NULL,
	kind TEXT NOT NULL,
	payload TEXT DEFAULT '',
	format_version INTEGER NOT NULL DEFAULT 0,
	raw_event_id INTEGER,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_task_messages_task ON task_messages(task_id, message_index);
`
