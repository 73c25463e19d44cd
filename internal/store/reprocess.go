package store

import (
	"fmt"
	"log/slog"

	"github.com/AgentTrail/AgentTrail/internal/normalized"
	"github.com/AgentTrail/AgentTrail/internal/normalizer"
)

// TasksBelowVersion returns the ids of tasks holding at least one message
// row written under an older normalizer version (or none at all, for rows
// that only reference a raw event).
func (s *Store) TasksBelowVersion(version int) ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT task_id FROM task_messages WHERE format_version < ? ORDER BY task_id`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReprocessTask regenerates every normalized row for a task from its raw
// events under the current normalizer version, fully replacing the prior
// rows. Re-emissions of one logical id collapse to the latest snapshot,
// mirroring the live update-by-logical-id path. If the task's original
// prompt was never stored as a discrete entry, one is synthesized at
// message index 0 with every other index shifted up to make room. It
// returns the number of rows written.
//
// Reprocessing must not run concurrently with a live producer for the same
// task; different tasks are independent.
func (s *Store) ReprocessTask(taskID string) (int, error) {
	task, err := s.GetTask(taskID)
	if err != nil {
		return 0, err
	}
	norm, err := normalizer.ForBackend(task.Backend)
	if err != nil {
		return 0, fmt.Errorf("reprocess %s: %w", taskID, err)
	}
	raws, err := s.RawEvents(taskID)
	if err != nil {
		return 0, fmt.Errorf("reprocess %s: load raw events: %w", taskID, err)
	}

	ctx := normalizer.Context{SessionID: task.SessionID}
	type pending struct {
		msg   *normalized.Message
		rawID int64
	}
	var msgs []pending
	seen := make(map[string]int)
	for _, re := range raws {
		msg, err := norm.Normalize([]byte(re.Payload), ctx)
		if err != nil {
			// A malformed event fails alone; the stream continues.
			slog.Warn("Skipping malformed raw event during reprocess",
				"task", taskID, "seq", re.Seq, "error", err)
			continue
		}
		if msg == nil {
			continue
		}
		if pos, ok := seen[msg.ID]; ok && msg.ID != "" {
			msgs[pos] = pending{msg: msg, rawID: re.ID}
			continue
		}
		if msg.ID != "" {
			seen[msg.ID] = len(msgs)
		}
		msgs = append(msgs, pending{msg: msg, rawID: re.ID})
	}

	hasPrompt := false
	for _, p := range msgs {
		if p.msg.Meta["type"] == KindPrompt {
			hasPrompt = true
			break
		}
	}
	if !hasPrompt && task.Prompt != "" {
		prompt := NewPromptMessage(task.Prompt, task.CreatedAt)
		msgs = append([]pending{{msg: prompt}}, msgs...)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM task_messages WHERE task_id = ?`, taskID); err != nil {
		return 0, fmt.Errorf("reprocess %s: clear messages: %w", taskID, err)
	}
	for i, p := range msgs {
		if _, err := s.appendWith(tx, taskID, i, p.msg, p.rawID); err != nil {
			return 0, fmt.Errorf("reprocess %s: %w", taskID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(msgs), nil
}
