// Package recorder owns the live ingest path for one task: raw event
// capture, normalization, append-or-reconcile persistence, and event
// fan-out.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AgentTrail/AgentTrail/internal/bus"
	"github.com/AgentTrail/AgentTrail/internal/feed"
	"github.com/AgentTrail/AgentTrail/internal/normalized"
	"github.com/AgentTrail/AgentTrail/internal/normalizer"
	"github.com/AgentTrail/AgentTrail/internal/normalizer/codex"
	"github.com/AgentTrail/AgentTrail/internal/store"

	// Claude needs no side data at finish; its normalizer only has to be
	// registered so every ingest and readback path can resolve it.
	_ "github.com/AgentTrail/AgentTrail/internal/normalizer/claude"
)

// Options configures a Recorder.
type Options struct {
	// TaskID identifies the task; a fresh id is generated when empty.
	TaskID string
	// Backend names the wire schema of incoming events.
	Backend string
	// Prompt is the user prompt that started the task. When set, it is
	// stored both on the task row and as a discrete entry at index 0.
	Prompt string
	// KeepRaw persists every incoming event verbatim. Disabling it
	// forfeits reprocessing for this task.
	KeepRaw bool
	// Bus receives an event per append/update. Optional.
	Bus *bus.EventBus
	// Feed receives the same events for external consumers. Optional;
	// feed failures are logged, never fatal to ingest.
	Feed feed.Publisher
}

// Recorder ingests one task's event stream. Not safe for concurrent use;
// a task has a single event source.
type Recorder struct {
	store   *store.Store
	opts    Options
	task    *store.Task
	next    int
	started time.Time

	// Codex side data for result synthesis.
	usage     *codex.TurnUsage
	lastText  string
	sawError  bool
	sessionID string
}

// New creates a recorder and registers the task. The prompt, when present,
// becomes the discrete entry at message index 0.
func New(st *store.Store, opts Options) (*Recorder, error) {
	if opts.TaskID == "" {
		opts.TaskID = uuid.NewString()
	}
	if _, err := normalizer.ForBackend(opts.Backend); err != nil {
		return nil, err
	}
	task, err := st.CreateTask(opts.TaskID, opts.Backend, opts.Prompt)
	if err != nil {
		return nil, err
	}
	r := &Recorder{store: st, opts: opts, task: task, started: time.Now()}
	if opts.Prompt != "" {
		prompt := store.NewPromptMessage(opts.Prompt, r.started)
		if _, err := st.Append(task.TaskID, 0, prompt, 0); err != nil {
			return nil, err
		}
		r.publish(bus.EventAppended, 0, prompt)
		r.next = 1
	}
	return r, nil
}

// TaskID returns the task id this recorder writes under.
func (r *Recorder) TaskID() string { return r.task.TaskID }

// HandleEvent ingests one raw backend event. Malformed events are logged
// and skipped; the stream continues. Suppressed lifecycle records return
// without writing a message row but may still contribute side data.
func (r *Recorder) HandleEvent(raw []byte) error {
	var rawID int64
	if r.opts.KeepRaw {
		id, err := r.store.AppendRaw(r.task.TaskID, raw)
		if err != nil {
			return err
		}
		rawID = id
	}

	if r.opts.Backend == normalizer.BackendCodex {
		if usage, ok := codex.ParseTokenCount(raw); ok {
			r.usage = usage
		}
	}

	norm, err := normalizer.ForBackend(r.opts.Backend)
	if err != nil {
		return err
	}
	msg, err := norm.Normalize(raw, normalizer.Context{SessionID: r.sessionID})
	if err != nil {
		if errors.Is(err, normalizer.ErrMalformed) {
			slog.Warn("Skipping malformed event", "task", r.task.TaskID, "error", err)
			return nil
		}
		return err
	}
	if msg == nil {
		return nil
	}

	r.noteSession(msg)
	r.noteResultSideData(msg)
	return r.persist(msg, rawID)
}

// persist reconciles a streaming re-emission in place when the logical id
// was seen before, otherwise appends at the next index.
func (r *Recorder) persist(msg *normalized.Message, rawID int64) error {
	if msg.ID != "" {
		n, err := r.store.UpdateByLogicalID(r.task.TaskID, msg.ID, msg)
		if err != nil {
			return err
		}
		if n > 0 {
			r.publish(bus.EventUpdated, -1, msg)
			return nil
		}
	}
	index := r.next
	if _, err := r.store.Append(r.task.TaskID, index, msg, rawID); err != nil {
		return err
	}
	r.next++
	r.publish(bus.EventAppended, index, msg)
	return nil
}

// noteSession records the backend session id on the task the first time a
// message carries one.
func (r *Recorder) noteSession(msg *normalized.Message) {
	if r.sessionID != "" || msg.SessionID == "" {
		return
	}
	r.sessionID = msg.SessionID
	if err := r.store.SetTaskSession(r.task.TaskID, msg.SessionID); err != nil {
		slog.Warn("Failed to record session id", "task", r.task.TaskID, "error", err)
	}
}

func (r *Recorder) noteResultSideData(msg *normalized.Message) {
	if r.opts.Backend != normalizer.BackendCodex {
		return
	}
	if msg.IsError {
		r.sawError = true
	}
	if msg.Role == normalized.RoleAssistant {
		if text := msg.Text(); text != "" {
			r.lastText = text
		}
	}
}

// Finish closes the task. For Codex streams, which carry no
// session-complete record of their own, a result message is synthesized
// from the accumulated side data and appended as the final entry.
func (r *Recorder) Finish(failed bool) error {
	if r.opts.Backend == normalizer.BackendCodex {
		end := codex.SessionEnd{
			SessionID:  r.sessionID,
			Text:       r.lastText,
			IsError:    failed || r.sawError,
			DurationMS: time.Since(r.started).Milliseconds(),
			Usage:      r.usage,
			EndedAt:    time.Now(),
		}
		result := codex.SynthesizeResult(end)
		index := r.next
		if _, err := r.store.Append(r.task.TaskID, index, result, 0); err != nil {
			return fmt.Errorf("append synthesized result: %w", err)
		}
		r.next++
		r.publish(bus.EventAppended, index, result)
	}

	status := store.TaskStatusCompleted
	if failed || r.sawError {
		status = store.TaskStatusFailed
	}
	if err := r.store.UpdateTaskStatus(r.task.TaskID, status); err != nil {
		return err
	}
	r.publish(bus.EventTaskEnded, -1, nil)
	return nil
}

func (r *Recorder) publish(kind string, index int, msg *normalized.Message) {
	ev := &bus.Event{Kind: kind, TaskID: r.task.TaskID, Index: index, Message: msg}
	if r.opts.Bus != nil {
		r.opts.Bus.Publish(ev)
	}
	if r.opts.Feed != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.opts.Feed.Publish(ctx, ev); err != nil {
			slog.Warn("Feed publish failed", "task", r.task.TaskID, "kind", kind, "error", err)
		}
	}
}
