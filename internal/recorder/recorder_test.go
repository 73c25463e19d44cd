package recorder

import (
	"path/filepath"
	"testing"

	"github.com/AgentTrail/AgentTrail/internal/bus"
	"github.com/AgentTrail/AgentTrail/internal/feed"
	"github.com/AgentTrail/AgentTrail/internal/normalized"
	"github.com/AgentTrail/AgentTrail/internal/normalizer"
	"github.com/AgentTrail/AgentTrail/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "trail.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestRecorderStoresPromptFirst(t *testing.T) {
	st := newTestStore(t)
	rec, err := New(st, Options{Backend: normalizer.BackendClaude, Prompt: "fix the bug", KeepRaw: true})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	raw := `{"type":"assistant","uuid":"u1","message":{"id":"m1","role":"assistant","content":"on it"}}`
	if err := rec.HandleEvent([]byte(raw)); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	msgs, err := st.FindByTask(rec.TaskID())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected prompt + message, got %d", len(msgs))
	}
	if msgs[0].Meta["type"] != store.KindPrompt {
		t.Errorf("expected prompt at index 0, got %+v", msgs[0])
	}
	if msgs[1].ID != "m1" {
		t.Errorf("expected event at index 1, got %s", msgs[1].ID)
	}
}

func TestRecorderReconcilesReemissions(t *testing.T) {
	st := newTestStore(t)
	rec, err := New(st, Options{Backend: normalizer.BackendClaude, KeepRaw: true})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	partial := `{"type":"assistant","uuid":"u1","session_id":"sess-1","message":{"id":"m1","role":"assistant","content":"par"}}`
	full := `{"type":"assistant","uuid":"u2","session_id":"sess-1","message":{"id":"m1","role":"assistant","content":"partial made full"}}`
	other := `{"type":"assistant","uuid":"u3","session_id":"sess-1","message":{"id":"m2","role":"assistant","content":"next"}}`
	for _, raw := range []string{partial, full, other} {
		if err := rec.HandleEvent([]byte(raw)); err != nil {
			t.Fatalf("handle event: %v", err)
		}
	}

	msgs, err := st.FindByTask(rec.TaskID())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected re-emission reconciled in place, got %d rows", len(msgs))
	}
	if msgs[0].Text() != "partial made full" {
		t.Errorf("expected updated payload, got %q", msgs[0].Text())
	}

	task, err := st.GetTask(rec.TaskID())
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.SessionID != "sess-1" {
		t.Errorf("expected session id recorded, got %q", task.SessionID)
	}
}

func TestRecorderSkipsMalformedEvents(t *testing.T) {
	st := newTestStore(t)
	rec, err := New(st, Options{Backend: normalizer.BackendClaude, KeepRaw: true})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	if err := rec.HandleEvent([]byte(`{malformed`)); err != nil {
		t.Fatalf("malformed event must not fail the stream: %v", err)
	}
	good := `{"type":"assistant","uuid":"u1","message":{"id":"m1","role":"assistant","content":"ok"}}`
	if err := rec.HandleEvent([]byte(good)); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	msgs, err := st.FindByTask(rec.TaskID())
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected only the good event stored, got %d (%v)", len(msgs), err)
	}

	// The malformed bytes are still in the raw log for reprocessing.
	raws, err := st.RawEvents(rec.TaskID())
	if err != nil || len(raws) != 2 {
		t.Fatalf("expected 2 raw events, got %d (%v)", len(raws), err)
	}
}

func TestRecorderSynthesizesCodexResult(t *testing.T) {
	st := newTestStore(t)
	rec, err := New(st, Options{Backend: normalizer.BackendCodex, Prompt: "add a flag"})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	events := []string{
		`{"method":"thread.started","params":{"thread_id":"th_1"}}`,
		`{"method":"item.completed","params":{"thread_id":"th_1","item":{"id":"item_1","item_type":"agent_message","text":"flag added"}}}`,
		`{"method":"token_count","params":{"usage":{"input_tokens":50,"output_tokens":10,"total_tokens":60}}}`,
	}
	for _, raw := range events {
		if err := rec.HandleEvent([]byte(raw)); err != nil {
			t.Fatalf("handle event: %v", err)
		}
	}
	if err := rec.Finish(false); err != nil {
		t.Fatalf("finish: %v", err)
	}

	msgs, err := st.FindByTask(rec.TaskID())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	last := msgs[len(msgs)-1]
	if last.Role != normalized.RoleResult || !last.Synthetic {
		t.Fatalf("expected synthesized result last, got %+v", last)
	}
	if last.Usage == nil || last.Usage.TotalTokens != 60 {
		t.Errorf("expected accumulated usage on result, got %+v", last.Usage)
	}
	if last.Text() != "flag added" {
		t.Errorf("expected last agent text on result, got %q", last.Text())
	}

	task, err := st.GetTask(rec.TaskID())
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != store.TaskStatusCompleted {
		t.Errorf("expected completed task, got %s", task.Status)
	}
	if task.SessionID != "th_1" {
		t.Errorf("expected thread id as session, got %q", task.SessionID)
	}
}

func TestRecorderKeepsDistinctIDLessEvents(t *testing.T) {
	st := newTestStore(t)
	rec, err := New(st, Options{Backend: normalizer.BackendCodex, KeepRaw: true})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	// Two errors in one turn and two unknown notifications: none carries a
	// wire id, so each must append instead of overwriting a prior row.
	events := []string{
		`{"method":"error","params":{"thread_id":"th_1","turn_id":"turn_1","message":"rate limited"}}`,
		`{"method":"error","params":{"thread_id":"th_1","turn_id":"turn_1","message":"context overflow"}}`,
		`{"method":"thread.archived","params":{"thread_id":"th_1","n":1}}`,
		`{"method":"thread.archived","params":{"thread_id":"th_1","n":2}}`,
	}
	for _, raw := range events {
		if err := rec.HandleEvent([]byte(raw)); err != nil {
			t.Fatalf("handle event: %v", err)
		}
	}

	msgs, err := st.FindByTask(rec.TaskID())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected all 4 events stored, got %d", len(msgs))
	}
	first, ok := msgs[0].Parts[0].(normalized.SystemStatusPart)
	if !ok || first.Status != "rate limited" {
		t.Errorf("expected the first error intact, got %+v", msgs[0].Parts[0])
	}
	second, ok := msgs[1].Parts[0].(normalized.SystemStatusPart)
	if !ok || second.Status != "context overflow" {
		t.Errorf("expected the second error intact, got %+v", msgs[1].Parts[0])
	}
}

func TestRecorderPublishesToFeed(t *testing.T) {
	st := newTestStore(t)
	pub := feed.NewChannelPublisher()
	rec, err := New(st, Options{
		Backend: normalizer.BackendClaude,
		Prompt:  "go",
		Bus:     bus.NewEventBus(),
		Feed:    pub,
	})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	raw := `{"type":"assistant","uuid":"u1","message":{"id":"m1","role":"assistant","content":"hi"}}`
	if err := rec.HandleEvent([]byte(raw)); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if err := rec.Finish(false); err != nil {
		t.Fatalf("finish: %v", err)
	}
	pub.Close()

	var kinds []string
	for ev := range pub.Events() {
		kinds = append(kinds, ev.Kind)
	}
	want := []string{bus.EventAppended, bus.EventAppended, bus.EventTaskEnded}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
}
