package codex

import "encoding/json"

// Notification methods the normalizer understands. The Codex CLI emits
// JSON-RPC style notifications; items are re-emitted on every lifecycle
// transition with the same item id and progressively fuller payloads.
const (
	notifyThreadStarted = "thread.started"
	notifyTurnStarted   = "turn.started"
	notifyTurnCompleted = "turn.completed"
	notifyTurnFailed    = "turn.failed"
	notifyItemStarted   = "item.started"
	notifyItemUpdated   = "item.updated"
	notifyItemCompleted = "item.completed"
	notifyTokenCount    = "token_count"
	notifyError         = "error"
)

// notification is one raw Codex event record.
type notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// itemParams is the payload of item.* notifications.
type itemParams struct {
	ThreadID string   `json:"thread_id"`
	TurnID   string   `json:"turn_id"`
	Item     *rawItem `json:"item"`
}

// rawItem is one thread item snapshot.
type rawItem struct {
	ID       string `json:"id"`
	ItemType string `json:"item_type"`

	// agent_message / user_message / reasoning
	Text string `json:"text,omitempty"`

	// command_execution
	Command          string `json:"command,omitempty"`
	CWD              string `json:"cwd,omitempty"`
	AggregatedOutput string `json:"aggregated_output,omitempty"`
	ExitCode         *int   `json:"exit_code,omitempty"`
	Status           string `json:"status,omitempty"`

	// file_change
	Changes json.RawMessage `json:"changes,omitempty"`

	// todo_list
	Items json.RawMessage `json:"items,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// errorParams is the payload of error notifications.
type errorParams struct {
	ThreadID string `json:"thread_id,omitempty"`
	TurnID   string `json:"turn_id,omitempty"`
	Message  string `json:"message"`
}

// wireUsage is the Codex-native token counter shape.
type wireUsage struct {
	InputTokens           int `json:"input_tokens"`
	CachedInputTokens     int `json:"cached_input_tokens"`
	OutputTokens          int `json:"output_tokens"`
	ReasoningOutputTokens int `json:"reasoning_output_tokens"`
	TotalTokens           int `json:"total_tokens"`
}
