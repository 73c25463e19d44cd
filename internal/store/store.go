// Package store persists raw backend events and normalized messages per
// task in SQLite, reconciles streaming re-emissions in place, and
// de-duplicates logical messages at read time.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AgentTrail/AgentTrail/internal/normalized"
	"github.com/AgentTrail/AgentTrail/internal/normalizer"
)

// ErrNotFound reports a missing task.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the store at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for existing dbs (no-op if column exists).
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN session_id TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN prompt TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE task_messages ADD COLUMN format_version INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE task_messages ADD COLUMN raw_event_id INTEGER`)

	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for shared access.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// --- Tasks ---

// CreateTask inserts a new task.
func (s *Store) CreateTask(taskID, backend, prompt string) (*Task, error) {
	_, err := s.db.Exec(`INSERT INTO tasks (task_id, backend, prompt, status) VALUES (?, ?, ?, ?)`,
		taskID, backend, prompt, TaskStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return s.GetTask(taskID)
}

// GetTask returns a task by task_id.
func (s *Store) GetTask(taskID string) (*Task, error) {
	var t Task
	err := s.db.QueryRow(`SELECT id, task_id, backend, COALESCE(session_id,''), COALESCE(prompt,''),
		status, created_at, updated_at FROM tasks WHERE task_id = ?`, taskID).
		Scan(&t.ID, &t.TaskID, &t.Backend, &t.SessionID, &t.Prompt, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// ListTasks returns all tasks, newest first.
func (s *Store) ListTasks() ([]Task, error) {
	rows, err := s.db.Query(`SELECT id, task_id, backend, COALESCE(session_id,''), COALESCE(prompt,''),
		status, created_at, updated_at FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.TaskID, &t.Backend, &t.SessionID, &t.Prompt,
			&t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus updates a task's status.
func (s *Store) UpdateTaskStatus(taskID, status string) error {
	_, err := s.db.Exec(`UPDATE tasks SET status = ?, updated_at = datetime('now') WHERE task_id = ?`,
		status, taskID)
	return err
}

// SetTaskSession records the backend session id once known.
func (s *Store) SetTaskSession(taskID, sessionID string) error {
	_, err := s.db.Exec(`UPDATE tasks SET session_id = ?, updated_at = datetime('now') WHERE task_id = ?`,
		sessionID, taskID)
	return err
}

// DeleteTask removes a task and everything recorded under it. This is the
// only path that destroys messages.
func (s *Store) DeleteTask(taskID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM task_messages WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete task messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM raw_events WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete raw events: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM tasks WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return tx.Commit()
}

// --- Raw events ---

// AppendRaw stores one backend event verbatim and returns its row id.
func (s *Store) AppendRaw(taskID string, payload []byte) (int64, error) {
	var next int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(seq), -1) + 1 FROM raw_events WHERE task_id = ?`, taskID).Scan(&next); err != nil {
		return 0, fmt.Errorf("next raw seq: %w", err)
	}
	res, err := s.db.Exec(`INSERT INTO raw_events (task_id, seq, payload) VALUES (?, ?, ?)`,
		taskID, next, string(payload))
	if err != nil {
		return 0, fmt.Errorf("append raw event: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// RawEvents returns a task's raw events in delivery order.
func (s *Store) RawEvents(taskID string) ([]RawEvent, error) {
	rows, err := s.db.Query(`SELECT id, task_id, seq, payload FROM raw_events WHERE task_id = ? ORDER BY seq ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []RawEvent
	for rows.Next() {
		var e RawEvent
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Seq, &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Normalized messages ---

// Append unconditionally inserts a normalized message at the given index.
// rawEventID references the originating raw event row; pass 0 when there is
// none (synthetic entries).
func (s *Store) Append(taskID string, messageIndex int, msg *normalized.Message, rawEventID int64) (int64, error) {
	return s.appendWith(s.db, taskID, messageIndex, msg, rawEventID)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) appendWith(db execer, taskID string, messageIndex int, msg *normalized.Message, rawEventID int64) (int64, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("marshal message: %w", err)
	}
	kind := string(msg.Role)
	if msg.Role == normalized.RoleUser && msg.Meta["type"] == KindPrompt {
		kind = KindPrompt
	}
	var rawRef any
	if rawEventID > 0 {
		rawRef = rawEventID
	}
	res, err := db.Exec(`INSERT INTO task_messages (task_id, message_index, kind, payload, format_version, raw_event_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		taskID, messageIndex, kind, string(payload), normalizer.Version, rawRef)
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// UpdateByLogicalID overwrites the stored payload of the row whose logical
// message id matches. It returns the number of rows updated (0 or 1); on 0
// the caller must Append instead — the logical message was never persisted.
func (s *Store) UpdateByLogicalID(taskID, logicalID string, msg *normalized.Message) (int, error) {
	var rowID int64
	err := s.db.QueryRow(`SELECT id FROM task_messages
		WHERE task_id = ? AND json_extract(payload, '$.id') = ?
		ORDER BY message_index DESC LIMIT 1`, taskID, logicalID).Scan(&rowID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("locate logical id: %w", err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("marshal message: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE task_messages SET payload = ?, format_version = ? WHERE id = ?`,
		string(payload), normalizer.Version, rowID); err != nil {
		return 0, fmt.Errorf("update message: %w", err)
	}
	return 1, nil
}

// FindByTask returns a task's messages ordered by message index, with
// read-time de-duplication: when several rows decode to the same logical
// id, only the row at the highest message index survives. "Latest" is
// defined by position, never wall-clock time. Rows holding only a raw
// event reference are normalized on demand; the result is repeatable and
// not persisted back.
func (s *Store) FindByTask(taskID string) ([]*normalized.Message, error) {
	task, err := s.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT m.id, m.message_index, m.kind, COALESCE(m.payload,''),
		m.format_version, COALESCE(m.raw_event_id, 0), COALESCE(r.payload,'')
		FROM task_messages m
		LEFT JOIN raw_events r ON r.id = m.raw_event_id
		WHERE m.task_id = ?
		ORDER BY m.message_index ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type decoded struct {
		index int
		msg   *normalized.Message
	}
	var ordered []decoded
	for rows.Next() {
		var (
			rowID, rawRef        int64
			index, version       int
			kind, payload, rawPL string
		)
		if err := rows.Scan(&rowID, &index, &kind, &payload, &version, &rawRef, &rawPL); err != nil {
			return nil, err
		}
		msg, err := s.decodeRow(task, payload, rawPL)
		if err != nil {
			slog.Warn("Skipping undecodable message row", "task", taskID, "row", rowID, "error", err)
			continue
		}
		if msg == nil {
			continue
		}
		ordered = append(ordered, decoded{index: index, msg: msg})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Highest index wins for duplicated logical ids.
	keep := make(map[string]int, len(ordered))
	for i, d := range ordered {
		if d.msg.ID == "" {
			continue
		}
		keep[d.msg.ID] = i
	}
	out := make([]*normalized.Message, 0, len(ordered))
	for i, d := range ordered {
		if d.msg.ID != "" && keep[d.msg.ID] != i {
			continue
		}
		out = append(out, d.msg)
	}
	return out, nil
}

// decodeRow turns one stored row into a message: the normalized payload if
// present, else lazy fallback normalization from the referenced raw event.
func (s *Store) decodeRow(task *Task, payload, rawPayload string) (*normalized.Message, error) {
	if payload != "" {
		var msg normalized.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return &msg, nil
	}
	if rawPayload == "" {
		return nil, errors.New("row has neither payload nor raw event")
	}
	norm, err := normalizer.ForBackend(task.Backend)
	if err != nil {
		return nil, err
	}
	msg, err := norm.Normalize([]byte(rawPayload), normalizer.Context{SessionID: task.SessionID})
	if err != nil {
		return nil, fmt.Errorf("fallback normalize: %w", err)
	}
	return msg, nil
}

// NewPromptMessage builds the synthetic discrete prompt entry stored at
// message index 0.
func NewPromptMessage(prompt string, ts time.Time) *normalized.Message {
	msg := &normalized.Message{
		ID:        "prompt",
		Role:      normalized.RoleUser,
		Synthetic: true,
		Timestamp: ts,
		Parts:     normalized.PartList{normalized.TextPart{Text: prompt}},
	}
	msg.SetMeta("type", KindPrompt)
	return msg
}
