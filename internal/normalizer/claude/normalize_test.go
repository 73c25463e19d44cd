package claude

import (
	"errors"
	"testing"

	"github.com/AgentTrail/AgentTrail/internal/normalized"
	"github.com/AgentTrail/AgentTrail/internal/normalizer"
)

func normalize(t *testing.T, raw string) *normalized.Message {
	t.Helper()
	n := &Normalizer{}
	msg, err := n.Normalize([]byte(raw), normalizer.Context{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return msg
}

func TestNormalizeAssistantBlocks(t *testing.T) {
	raw := `{"type":"assistant","uuid":"env-uuid","session_id":"sess-1","timestamp":"2026-08-29T10:00:00Z",
		"message":{"id":"msg_01","model":"claude-sonnet-4-5","role":"assistant",
			"content":[
				{"type":"text","text":"Let me check."},
				{"type":"thinking","thinking":"need to read the file"},
				{"type":"tool_use","id":"toolu_1","name":"Read","input":{"file_path":"/tmp/a"}}
			],
			"usage":{"input_tokens":10,"output_tokens":5}}}`
	msg := normalize(t, raw)

	// The API message id is the logical identity, not the envelope uuid.
	if msg.ID != "msg_01" {
		t.Errorf("expected id msg_01, got %s", msg.ID)
	}
	if msg.Role != normalized.RoleAssistant {
		t.Errorf("expected assistant role, got %s", msg.Role)
	}
	if msg.Model != "claude-sonnet-4-5" {
		t.Errorf("expected model from inner message, got %s", msg.Model)
	}
	if msg.SessionID != "sess-1" {
		t.Errorf("expected session id, got %s", msg.SessionID)
	}
	if len(msg.Parts) != 3 {
		t.Fatalf("expected 3 parts (one per block), got %d", len(msg.Parts))
	}
	if _, ok := msg.Parts[0].(normalized.TextPart); !ok {
		t.Errorf("part 0: expected text, got %T", msg.Parts[0])
	}
	if _, ok := msg.Parts[1].(normalized.ReasoningPart); !ok {
		t.Errorf("part 1: expected reasoning, got %T", msg.Parts[1])
	}
	tu, ok := msg.Parts[2].(normalized.ToolUsePart)
	if !ok || tu.ToolID != "toolu_1" || tu.ToolName != "Read" {
		t.Errorf("part 2: unexpected tool use %+v", msg.Parts[2])
	}
	if msg.Usage == nil || msg.Usage.TotalTokens != 15 {
		t.Errorf("expected usage total 15, got %+v", msg.Usage)
	}
}

func TestNormalizeUserStringContent(t *testing.T) {
	raw := `{"type":"user","uuid":"u-1","message":{"role":"user","content":"fix the bug"}}`
	msg := normalize(t, raw)
	if msg.Role != normalized.RoleUser {
		t.Fatalf("expected user role, got %s", msg.Role)
	}
	if msg.Text() != "fix the bug" {
		t.Fatalf("expected string content as text part, got %q", msg.Text())
	}
}

func TestNormalizeToolResultSideChannel(t *testing.T) {
	raw := `{"type":"user","uuid":"u-2","parent_tool_use_id":"toolu_parent",
		"toolUseResult":{"skillName":"code-review"},
		"message":{"role":"user","content":[
			{"type":"tool_result","tool_use_id":"toolu_1","content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]}
		]}}`
	msg := normalize(t, raw)
	if msg.ParentToolUseID != "toolu_parent" {
		t.Errorf("expected parent tool use id, got %q", msg.ParentToolUseID)
	}
	results := msg.ToolResults()
	if len(results) != 1 {
		t.Fatalf("expected 1 tool result, got %d", len(results))
	}
	if results[0].Content != "line one\nline two" {
		t.Errorf("expected flattened nested text, got %q", results[0].Content)
	}
	if string(results[0].Structured) != `{"skillName":"code-review"}` {
		t.Errorf("expected side-channel payload attached, got %s", results[0].Structured)
	}
}

func TestNormalizeSideChannelNeedsOneToolResult(t *testing.T) {
	// The record-level payload names no tool_use_id; with two result
	// blocks there is no way to tell which one it belongs to, so it
	// attaches to neither instead of being duplicated onto both.
	raw := `{"type":"user","uuid":"u-3",
		"toolUseResult":{"skillName":"code-review"},
		"message":{"role":"user","content":[
			{"type":"tool_result","tool_use_id":"toolu_1","content":"a"},
			{"type":"tool_result","tool_use_id":"toolu_2","content":"b"}
		]}}`
	msg := normalize(t, raw)
	results := msg.ToolResults()
	if len(results) != 2 {
		t.Fatalf("expected 2 tool results, got %d", len(results))
	}
	for _, r := range results {
		if len(r.Structured) != 0 {
			t.Errorf("tool %s: ambiguous side-channel payload must not attach, got %s", r.ToolID, r.Structured)
		}
	}
}

func TestNormalizeSuppressesLifecycleRecords(t *testing.T) {
	for _, raw := range []string{
		`{"type":"system","subtype":"init","session_id":"s"}`,
		`{"type":"system","subtype":"hook_started"}`,
		`{"type":"system","subtype":"hook_whatever_new"}`,
		`{"type":"system","subtype":"mcp_server_status"}`,
	} {
		msg := normalize(t, raw)
		if msg != nil {
			t.Errorf("expected %s suppressed, got %+v", raw, msg)
		}
	}
}

func TestNormalizeSystemStatus(t *testing.T) {
	raw := `{"type":"system","subtype":"status","uuid":"s-1","session_id":"sess-1","status":"compacting"}`
	msg := normalize(t, raw)
	if len(msg.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(msg.Parts))
	}
	ss, ok := msg.Parts[0].(normalized.SystemStatusPart)
	if !ok || ss.Status != "compacting" {
		t.Fatalf("expected compacting status part, got %+v", msg.Parts[0])
	}
}

func TestNormalizeCompactBoundary(t *testing.T) {
	raw := `{"type":"system","subtype":"compact_boundary","uuid":"c-1","session_id":"sess-1",
		"compact_metadata":{"trigger":"manual","pre_tokens":155000}}`
	msg := normalize(t, raw)
	cp, ok := msg.Parts[0].(normalized.CompactPart)
	if !ok {
		t.Fatalf("expected compact part, got %T", msg.Parts[0])
	}
	if cp.Trigger != "manual" || cp.PreTokens != 155000 {
		t.Errorf("unexpected compact metadata: %+v", cp)
	}
}

func TestNormalizeResult(t *testing.T) {
	raw := `{"type":"result","subtype":"success","uuid":"r-1","session_id":"sess-1",
		"is_error":false,"duration_ms":42000,"total_cost_usd":0.37,"num_turns":7,
		"result":"All tests pass.",
		"usage":{"input_tokens":1000,"output_tokens":200},
		"modelUsage":{"claude-sonnet-4-5":{"inputTokens":1000,"outputTokens":200,"costUSD":0.37}}}`
	msg := normalize(t, raw)
	if msg.Role != normalized.RoleResult {
		t.Fatalf("expected result role, got %s", msg.Role)
	}
	if msg.CostUSD != 0.37 || msg.DurationMS != 42000 {
		t.Errorf("unexpected cost/duration: %v %v", msg.CostUSD, msg.DurationMS)
	}
	if msg.Text() != "All tests pass." {
		t.Errorf("expected result text, got %q", msg.Text())
	}
	mu, ok := msg.ModelUsage["claude-sonnet-4-5"]
	if !ok || mu.CostUSD != 0.37 || mu.InputTokens != 1000 {
		t.Errorf("unexpected model usage: %+v", msg.ModelUsage)
	}
	if msg.Meta["num_turns"] != "7" {
		t.Errorf("expected num_turns meta, got %+v", msg.Meta)
	}
}

func TestNormalizeUnknownRecordKindDegrades(t *testing.T) {
	raw := `{"type":"telemetry","uuid":"t-1","payload":{"cpu":99}}`
	msg := normalize(t, raw)
	if msg == nil {
		t.Fatal("unknown record kinds must not be dropped")
	}
	up, ok := msg.Parts[0].(normalized.UnknownPart)
	if !ok || up.OriginalType != "telemetry" {
		t.Fatalf("expected unknown part preserving the record, got %+v", msg.Parts[0])
	}
}

func TestNormalizeMalformedJSON(t *testing.T) {
	n := &Normalizer{}
	_, err := n.Normalize([]byte(`{"type":"assistant",`), normalizer.Context{})
	if !errors.Is(err, normalizer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
